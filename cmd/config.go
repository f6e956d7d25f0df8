package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/remixure/remixure/internal/config"
)

func newConfigCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config [--env=<name>]",
		Short: "Print the merged configuration as YAML",
		Long: `Load config/config.default.* and the environment file exactly like a
build would, validate the result and print it.`,
		Args:               cobra.NoArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader(newLogger(cmd, v))
			opts, _, err := loader.Load(v.GetString("base"), loaderArgs(v, false))
			if err != nil {
				return err
			}
			data, err := config.Marshal(opts)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
