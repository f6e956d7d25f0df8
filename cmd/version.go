package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/remixure/remixure/internal/version"
)

func newVersionCommand() *cobra.Command {
	var (
		format   string
		short    bool
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version information for remixure: the release, the git commit,
the build time, the linked esbuild version and the Go toolchain.

Examples:
  remixure version                 # Show the version
  remixure version --detailed      # Show every build fact
  remixure version --format json   # Output as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(version.GetBuildInfo())
			case "text":
				switch {
				case short:
					fmt.Fprintln(out, version.GetShortVersion())
				case detailed:
					fmt.Fprintln(out, version.GetDetailedVersion())
				default:
					fmt.Fprintf(out, "remixure %s (esbuild %s)\n", version.GetShortVersion(), version.EsbuildVersion())
				}
				return nil
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	cmd.Flags().BoolVar(&short, "short", false, "Show short version only")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show detailed version information")
	return cmd
}
