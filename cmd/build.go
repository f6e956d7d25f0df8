package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newBuildCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "build [--env=<name>] [--key=value ...]",
		Aliases: []string{"b"},
		Short:   "Compile every target of the project",
		Long: `Compile the project once. In production one output tree is written per
configured language and the command fails when any of them has errors.

Examples:
  remixure build                  # Production build into the target folder
  remixure build --env=staging    # Merge config/config.staging.yaml first
  remixure build --metrics-file=build.prom`,
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v, false)
		},
	}
}
