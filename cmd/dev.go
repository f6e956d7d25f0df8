package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDevCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dev [--env=<name>] [--key=value ...]",
		Aliases: []string{"serve", "s"},
		Short:   "Watch the sources, rebuild on change and serve the output",
		Long: `Build the default language in the dev environment and rebuild whenever a
source file changes. When devServer is configured the output is served with
live reload.

Examples:
  remixure dev                    # Watch with the dev environment
  remixure dev --no-open          # Do not open the browser`,
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v, true)
		},
	}
	cmd.Flags().Bool("no-open", false, "do not open devServer.defaultApp in the browser")
	_ = v.BindPFlag("no-open", cmd.Flags().Lookup("no-open"))
	return cmd
}
