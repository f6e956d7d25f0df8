// Package cmd provides the command-line interface of remixure.
//
// Configuration System:
//
//	Project options come from the files below <base>/config and are read by
//	internal/config. The flags of the CLI itself are bound through viper and
//	may also be set in the environment with the REMIXURE_ prefix:
//
//	REMIXURE_LOG_LEVEL:    debug, info, warn or error
//	REMIXURE_BASE:         project folder (default ".")
//	REMIXURE_ENV:          configuration environment, like --env
//	REMIXURE_METRICS_FILE: write build metrics in the Prometheus text format
//
// Arguments of the form --key=value that remixure does not know are accepted
// and ignored.
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/engine"
	"github.com/remixure/remixure/internal/logging"
	"github.com/remixure/remixure/internal/monitoring"
	"github.com/remixure/remixure/internal/services"
)

// Execute runs the command line with args.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand returns the remixure command tree. Without a subcommand it
// builds the project.
func NewRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "remixure [build] [--env=<name>] [--key=value ...]",
		Short: "Build front-end applications with esbuild",
		Long: `remixure compiles the scripts below the source folder of a project into
bundles, one per entry file, with their stylesheets, assets and HTML pages.

With an i18n configuration one output tree is built per language. In the
dev environment a single language is built and rebuilt on every change,
optionally served with live reload.

Quick Start:
  remixure                      Build for production
  remixure --env=test           Build with config/config.test.yaml merged in
  remixure dev                  Watch, rebuild and serve
  remixure config               Print the merged configuration`,
		Args:               cobra.ArbitraryArgs,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v, false)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("base", ".", "project folder")
	flags.String("env", "", "configuration environment (overrides config/env)")
	flags.String("metrics-file", "", "write build metrics to this file")

	initConfig(v, flags)

	root.AddCommand(
		newBuildCommand(v),
		newDevCommand(v),
		newConfigCommand(v),
		newVersionCommand(),
	)
	return root
}

// initConfig binds every persistent flag to viper, so each can also be set
// as REMIXURE_<FLAG> with dashes turned into underscores.
func initConfig(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix("REMIXURE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

func newLogger(cmd *cobra.Command, v *viper.Viper) logging.Logger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(v.GetString("log-level")),
		Output: cmd.ErrOrStderr(),
	})
}

// loaderArgs turns the environment selected on the command line into the
// arguments the configuration loader understands. dev selects the dev
// environment unless one is given.
func loaderArgs(v *viper.Viper, dev bool) []string {
	env := v.GetString("env")
	if env == "" && dev {
		env = config.DevEnv
	}
	if env == "" {
		return nil
	}
	return []string{"--env=" + env}
}

// run compiles the project: once per target in production, continuously
// in the dev environment.
func run(cmd *cobra.Command, v *viper.Viper, dev bool) error {
	logger := newLogger(cmd, v)
	plan, err := services.Prepare(config.NewLoader(logger), v.GetString("base"), loaderArgs(v, dev))
	if err != nil {
		return err
	}

	tc := services.Toolchain{
		Compiler: engine.New(logger),
		Logger:   logger,
		Metrics:  monitoring.NewMetrics(),
		Out:      cmd.ErrOrStderr(),
	}
	metricsFile := v.GetString("metrics-file")

	if plan.Context.IsDevelopment() {
		return services.NewServeService(tc).Serve(cmd.Context(), plan, services.ServeOptions{
			OpenBrowser: !v.GetBool("no-open"),
			MetricsFile: metricsFile,
		})
	}
	_, err = services.NewBuildService(tc).Build(cmd.Context(), plan, services.BuildOptions{
		MetricsFile: metricsFile,
	})
	return err
}
