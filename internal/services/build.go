package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/remixure/remixure/internal/bundle"
	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/logging"
	"github.com/remixure/remixure/internal/matrix"
	"github.com/remixure/remixure/internal/report"
)

// BuildService compiles every target of a plan once.
type BuildService struct {
	tc Toolchain
}

// NewBuildService creates a new build service
func NewBuildService(tc Toolchain) *BuildService {
	tc.defaults()
	tc.Logger = tc.Logger.WithComponent("build")
	return &BuildService{tc: tc}
}

// BuildOptions contains options for the build process
type BuildOptions struct {
	// MetricsFile receives the build metrics in the Prometheus text format.
	MetricsFile string
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Duration time.Duration
	Targets  []*bundle.Stats
	Success  bool
}

// Build compiles the targets of plan concurrently. A failing target never
// cancels the others; every target is reported once it finishes. The run
// fails when any report decides so.
func (s *BuildService) Build(ctx context.Context, plan *Plan, opts BuildOptions) (*BuildResult, error) {
	start := time.Now()
	reporter := report.New(s.tc.Out, plan.Context)
	result := &BuildResult{Targets: make([]*bundle.Stats, len(plan.Targets)), Success: true}
	failed := make([]bool, len(plan.Targets))

	s.tc.Logger.Info(ctx, "Building targets", "mode", plan.Context.ModeName(), "targets", len(plan.Targets))

	var g errgroup.Group
	for i, t := range plan.Targets {
		g.Go(func() error {
			stats := s.compile(ctx, t)
			d := reporter.Report(stats)
			s.tc.Metrics.ObserveBuild(stats, d.Failed)
			s.tc.inspect(ctx, plan.Options.Inspection)

			result.Targets[i] = stats
			failed[i] = d.Failed
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	s.tc.writeMetrics(ctx, opts.MetricsFile)

	var failures []string
	for i, f := range failed {
		if f {
			failures = append(failures, plan.Targets[i].Language)
		}
	}
	if len(failures) > 0 {
		result.Success = false
		return result, rerrors.NewBuildError(rerrors.ErrCodeBuildFailed, "Compile with errors!", nil).
			WithContext("targets", failures).
			AsFatal()
	}

	s.tc.Logger.Debug(ctx, "Build finished", "duration", result.Duration)
	return result, nil
}

func (s *BuildService) compile(ctx context.Context, t matrix.Target) *bundle.Stats {
	t = s.tc.prepareTarget(t)
	perf := logging.StartOperation(s.tc.Logger.With("language", t.Language), "compile")
	stats, err := s.tc.Compiler.Compile(ctx, t)
	if err == nil && stats == nil {
		err = fmt.Errorf("no result for target %s", t.Language)
	}
	if err != nil {
		perf.EndWithError(ctx, rerrors.WrapBuild(err, rerrors.ErrCodeBuildFailed, "compilation failed", t.Language))
		return failedStats(t.Language, err)
	}
	perf.End(ctx)
	return stats
}
