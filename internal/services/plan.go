// Package services runs the two top-level workflows of remixure: a one-shot
// build of every target and the development loop (watch, rebuild, serve).
package services

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/remixure/remixure/internal/assemble"
	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/engine"
	"github.com/remixure/remixure/internal/entry"
	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/logging"
	"github.com/remixure/remixure/internal/matrix"
	"github.com/remixure/remixure/internal/monitoring"
)

// Plan is a loaded project ready to compile.
type Plan struct {
	Options *config.Options
	Context config.BuildContext
	Entries entry.Map
	Targets []matrix.Target
}

// Prepare loads the configuration of the project in base, discovers its
// entries and expands the build matrix. Nothing is compiled.
func Prepare(loader *config.Loader, base string, args []string) (*Plan, error) {
	if loader == nil {
		loader = config.NewLoader(nil)
	}
	opts, bc, err := loader.Load(base, args)
	if err != nil {
		return nil, err
	}
	if !engine.KnownTarget(opts.EsTarget()) {
		return nil, rerrors.NewConfigError(rerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("target %q is not a syntax level esbuild can produce", opts.EsTarget()), nil)
	}

	entries, err := entry.Discover(opts.SourceFolder(bc), opts)
	if err != nil {
		return nil, err
	}

	assembled := assemble.Config(opts, entries, bc)
	return &Plan{
		Options: opts,
		Context: bc,
		Entries: entries,
		Targets: matrix.Expand(assembled, opts, bc),
	}, nil
}

// BeforeBuildHook may rewrite the configuration of a target right before it
// is compiled. Returning nil keeps the configuration it was given.
type BeforeBuildHook func(cfg *bundle.Config, language string) *bundle.Config

// Toolchain is what both services need to compile a plan.
type Toolchain struct {
	Compiler    engine.Compiler
	Logger      logging.Logger
	Metrics     *monitoring.Metrics
	Out         io.Writer
	BeforeBuild BeforeBuildHook
	// Inspect refreshes the pages showing the inspection address after every
	// compilation. Failures are ignored.
	Inspect Inspector
}

func (tc *Toolchain) defaults() {
	if tc.Logger == nil {
		tc.Logger = logging.NopLogger{}
	}
	if tc.Compiler == nil {
		tc.Compiler = engine.New(tc.Logger)
	}
	if tc.Out == nil {
		tc.Out = os.Stderr
	}
	if tc.Inspect == nil {
		tc.Inspect = RefreshBrowser
	}
}

func (tc *Toolchain) prepareTarget(t matrix.Target) matrix.Target {
	if tc.BeforeBuild == nil {
		return t
	}
	if cfg := tc.BeforeBuild(t.Config, t.Language); cfg != nil {
		t.Config = cfg
	}
	return t
}

func (tc *Toolchain) inspect(ctx context.Context, address string) {
	if address == "" {
		return
	}
	if err := tc.Inspect(ctx, address); err != nil {
		tc.Logger.Debug(ctx, "Inspection skipped", "address", address, "error", err)
	}
}

func (tc *Toolchain) writeMetrics(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := tc.Metrics.WriteToTextfile(path); err != nil {
		tc.Logger.Warn(ctx, err, "Failed to write metrics file", "path", path)
	}
}

// failedStats reports a compilation that could not run as a compile error.
func failedStats(language string, err error) *bundle.Stats {
	return &bundle.Stats{Language: language, Errors: []string{err.Error()}}
}
