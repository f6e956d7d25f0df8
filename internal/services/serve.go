package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/report"
	"github.com/remixure/remixure/internal/server"
	"github.com/remixure/remixure/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// ServeService runs the development loop: compile, watch the source tree,
// recompile on change and serve the output with live reload.
type ServeService struct {
	tc Toolchain
}

// NewServeService creates a new serve service
func NewServeService(tc Toolchain) *ServeService {
	tc.defaults()
	tc.Logger = tc.Logger.WithComponent("serve")
	return &ServeService{tc: tc}
}

// ServeOptions contains options for the serve process
type ServeOptions struct {
	// OpenBrowser opens devServer.defaultApp once the server listens.
	OpenBrowser bool
	// Debounce is how long the source tree must be quiet before a rebuild.
	Debounce time.Duration
	// MetricsFile is rewritten after every compilation when set.
	MetricsFile string
}

// Serve compiles the single development target of plan and keeps it up to
// date until ctx is done or the process receives SIGINT or SIGTERM.
// Compile errors are reported and never end the loop.
func (s *ServeService) Serve(ctx context.Context, plan *Plan, opts ServeOptions) error {
	if len(plan.Targets) == 0 {
		return rerrors.NewValidationError(rerrors.ErrCodeNoEntries, "nothing to serve")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	target := s.tc.prepareTarget(plan.Targets[0])
	reporter := report.New(s.tc.Out, plan.Context)

	session, err := s.tc.Compiler.Start(ctx, target)
	if err != nil {
		return err
	}
	// Rebuilds run on the watcher goroutine; closed keeps them off a
	// disposed session.
	var mu sync.Mutex
	closed := false
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		closed = true
		session.Close()
	}()

	var srv *server.Server
	serverErr := make(chan error, 1)
	if plan.Options.DevServer == nil {
		reporter.Println("", "There is no devServer configurations. Ignore...")
	} else {
		cfg := server.ConfigFromOptions(plan.Options, plan.Context, target.OutputPath())
		cfg.OpenBrowser = opts.OpenBrowser
		srv = server.New(cfg, s.tc.Logger, s.tc.Metrics)
		go func() { serverErr <- srv.Start(ctx) }()
		clearConsole(s.tc.Out)
		reporter.Println("", "Starting the development server...")
	}

	compile := func() {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		reporter.Println("green", "Compiling...")
		stats, err := session.Rebuild(ctx)
		if err != nil {
			stats = failedStats(target.Language, err)
		}
		d := reporter.Report(stats)
		s.tc.Metrics.ObserveBuild(stats, d.Failed)
		s.tc.writeMetrics(ctx, opts.MetricsFile)
		if srv != nil {
			srv.Notify(stats)
		}
		s.tc.inspect(ctx, plan.Options.Inspection)
	}
	compile()

	fw, err := s.newWatcher(plan, target.OutputPath(), opts.Debounce)
	if err != nil {
		return err
	}
	defer fw.Stop()
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			s.tc.Metrics.FileWatcherEvent(e.Type.String())
			s.tc.Logger.Debug(ctx, "Source changed", "path", e.Path, "type", e.Type.String())
		}
		compile()
		return nil
	})
	if err := fw.Start(ctx); err != nil {
		return err
	}
	reporter.Println("green", "Watching Started!")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			s.tc.Logger.Warn(ctx, err, "Dev server shutdown failed")
		}
	}
	s.tc.Logger.Info(context.Background(), "Stopped watching")
	return nil
}

// newWatcher watches the source folder and the folder of the HTML template.
// Dependencies and the output folder are never watched.
func (s *ServeService) newWatcher(plan *Plan, output string, delay time.Duration) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(delay, s.tc.Logger)
	if err != nil {
		return nil, rerrors.NewIOError(rerrors.ErrCodeInternalError, "cannot start the file watcher", err)
	}
	fw.SkipDirs(watcher.DependencyDir)
	fw.SkipDirs(watcher.Within(output))
	fw.AddFilter(watcher.SourceFilter)
	fw.AddFilter(watcher.NoEditorFilter)

	source := plan.Options.SourceFolder(plan.Context)
	if err := fw.AddRecursive(source); err != nil {
		fw.Stop()
		return nil, rerrors.NewIOError(rerrors.ErrCodeFileNotFound, fmt.Sprintf("cannot watch %s", source), err)
	}

	if plan.Options.HTMLPath != "" {
		dir := filepath.Dir(plan.Context.Path(plan.Options.HTMLPath))
		if !watcher.Within(source)(dir) {
			if err := fw.AddRecursive(dir); err != nil {
				s.tc.Logger.Warn(context.Background(), err, "Cannot watch the template folder", "path", dir)
			}
		}
	}
	return fw, nil
}

// clearConsole clears out when it is a terminal.
func clearConsole(out io.Writer) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return
	}
	_, _ = io.WriteString(out, "\x1b[2J\x1b[3J\x1b[H")
}
