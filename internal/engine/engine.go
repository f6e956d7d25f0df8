// Package engine compiles build targets with esbuild.
//
// The assembled configuration is engine-neutral; this package realizes it:
// entries and output names become esbuild options, rules and aliases become
// resolve/load callbacks, and plugins become esbuild flags or post-build
// steps (stylesheet relocation, page generation, copying). Output is written
// by the engine itself so that unchanged files are not rewritten and every
// file can be reported.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/remixure/remixure/internal/bundle"
	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/logging"
	"github.com/remixure/remixure/internal/matrix"
	"github.com/remixure/remixure/internal/tree"
)

// Compiler compiles build targets. Start opens an incremental session used
// by watch mode; Compile is a single build.
type Compiler interface {
	Compile(ctx context.Context, t matrix.Target) (*bundle.Stats, error)
	Start(ctx context.Context, t matrix.Target) (Session, error)
}

// Session is an incremental compilation of one target.
type Session interface {
	Rebuild(ctx context.Context) (*bundle.Stats, error)
	Close()
}

// Engine is the esbuild-backed Compiler.
type Engine struct {
	logger logging.Logger
}

// New returns an engine logging through logger.
func New(logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Engine{logger: logger.WithComponent("engine")}
}

// Compile builds t once.
func (e *Engine) Compile(ctx context.Context, t matrix.Target) (*bundle.Stats, error) {
	s, err := e.Start(ctx, t)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Rebuild(ctx)
}

// Start cleans the target's output folder when requested and prepares an
// esbuild context for it.
func (e *Engine) Start(ctx context.Context, t matrix.Target) (Session, error) {
	cfg := t.Config
	if err := clean(cfg); err != nil {
		return nil, rerrors.NewIOError(rerrors.ErrCodeBuildFailed, "cleaning output folder failed", err).
			WithContext("path", cfg.Output.Path)
	}

	st := &state{
		ctx:    ctx,
		cfg:    cfg,
		lang:   t.Language,
		logger: e.logger.With("language", t.Language),
		less:   NewLessCompiler(cfg.Context),
		files:  map[string]emittedFile{},
	}

	bctx, cerr := api.Context(st.options())
	if cerr != nil {
		return &failedSession{lang: t.Language, errors: formatMessages(cerr.Errors, api.ErrorMessage)}, nil
	}
	return &session{state: st, build: bctx}, nil
}

type session struct {
	state *state
	build api.BuildContext
}

// Rebuild runs one compilation and writes its output.
func (s *session) Rebuild(ctx context.Context) (*bundle.Stats, error) {
	start := time.Now()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.build.Cancel()
		case <-done:
		}
	}()
	result := s.build.Rebuild()
	close(done)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &bundle.Stats{
		Language: s.state.lang,
		Errors:   formatMessages(result.Errors, api.ErrorMessage),
		Warnings: formatMessages(result.Warnings, api.WarningMessage),
	}

	if len(result.Errors) == 0 {
		files, err := s.state.collect(result)
		if err == nil {
			stats.Assets, stats.Hash, err = writeFiles(s.state.cfg.Output.Path, files)
		}
		if err != nil {
			stats.Errors = append(stats.Errors, err.Error())
		}
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (s *session) Close() {
	s.build.Dispose()
}

// failedSession reports configuration errors esbuild rejected up front.
type failedSession struct {
	lang   string
	errors []string
}

func (f *failedSession) Rebuild(context.Context) (*bundle.Stats, error) {
	return &bundle.Stats{Language: f.lang, Errors: f.errors}, nil
}

func (f *failedSession) Close() {}

// options translates the assembled configuration into esbuild options.
func (s *state) options() api.BuildOptions {
	cfg := s.cfg
	opts := api.BuildOptions{
		AbsWorkingDir:       cfg.Context,
		EntryPointsAdvanced: entryPoints(cfg.Entry),
		Bundle:              true,
		Write:               false,
		Metafile:            true,
		Outdir:              cfg.Output.Path,
		EntryNames:          esbuildNames(cfg.Output.Filename),
		ChunkNames:          esbuildNames(cfg.Output.ChunkFilename),
		AssetNames:          "static/media/[name].[hash]",
		PublicPath:          cfg.Output.PublicPath,
		Platform:            api.PlatformBrowser,
		Format:              api.FormatIIFE,
		Target:              esTarget(cfg.Target),
		NodePaths:           cfg.Resolve.Modules,
		ResolveExtensions:   cfg.Resolve.Extensions,
		Loader:              loaders(cfg.Rules),
		LogLevel:            api.LogLevelSilent,
		Define:              map[string]string{"process.env.NODE_ENV": `"` + string(cfg.Mode) + `"`},
	}
	if cfg.Splitting {
		opts.Splitting = true
		opts.Format = api.FormatESModule
	}
	if cfg.Devtool != "" {
		opts.Sourcemap = api.SourceMapLinked
	}

	plugins := []api.Plugin{s.rulesPlugin()}
	for _, p := range cfg.Plugins {
		switch p.Name {
		case bundle.PluginMinify:
			opts.MinifyWhitespace = true
			opts.MinifyIdentifiers = true
			opts.MinifySyntax = true
		case bundle.PluginDefine:
			for _, k := range p.Options.Keys() {
				opts.Define[k] = defineValue(p.Options[k])
			}
		case "banner":
			opts.Banner = banner(p.Options)
		case bundle.PluginProgress:
			plugins = append(plugins, s.progressPlugin())
		case bundle.PluginClean, bundle.PluginExtractCSS, bundle.PluginIgnoreLocales,
			bundle.PluginHTML, bundle.PluginInterpolateHTML, "copy":
			// Realized by the rules plugin or after the build.
		default:
			if custom, ok := p.Custom.(api.Plugin); ok {
				plugins = append(plugins, custom)
				continue
			}
			s.logger.Debug(s.ctx, "Skipping plugin the engine does not understand", "plugin", p.Name)
		}
	}
	opts.Plugins = plugins
	return opts
}

// progressPlugin logs a start and an end line per compilation.
func (s *state) progressPlugin() api.Plugin {
	return api.Plugin{
		Name: "remixure-progress",
		Setup: func(pb api.PluginBuild) {
			var start time.Time
			pb.OnStart(func() (api.OnStartResult, error) {
				start = time.Now()
				s.logger.Info(s.ctx, "Compiling...")
				return api.OnStartResult{}, nil
			})
			pb.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				s.logger.Info(s.ctx, "Compiled",
					"errors", len(result.Errors),
					"warnings", len(result.Warnings),
					"duration_ms", time.Since(start).Milliseconds())
				return api.OnEndResult{}, nil
			})
		},
	}
}

// entryPoints names every output after its entry, in name order.
func entryPoints(entries map[string]string) []api.EntryPoint {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	points := make([]api.EntryPoint, 0, len(names))
	for _, name := range names {
		points = append(points, api.EntryPoint{InputPath: entries[name], OutputPath: name})
	}
	return points
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// KnownTarget reports whether name is a syntax level the engine can lower to.
func KnownTarget(name string) bool {
	_, ok := esTargets[strings.ToLower(name)]
	return ok
}

func esTarget(name string) api.Target {
	if t, ok := esTargets[strings.ToLower(name)]; ok {
		return t
	}
	return api.ES2015
}

// loaders maps every extension handled by a url rule to the dataurl loader,
// which is what esbuild falls back to for files kept inline.
func loaders(rules []bundle.Rule) map[string]api.Loader {
	m := map[string]api.Loader{
		".js":   api.LoaderJSX,
		".jsx":  api.LoaderJSX,
		".json": api.LoaderJSON,
		".css":  api.LoaderCSS,
		".less": api.LoaderCSS,
	}
	for _, r := range rules {
		if _, ok := r.Loader(bundle.LoaderURL); !ok || r.Test == nil {
			continue
		}
		for _, ext := range extensionsOf(r.Test.String()) {
			m[ext] = api.LoaderDataURL
		}
	}
	return m
}

// extensionsOf lists the extensions of a `\.(a|b|c)$` test expression.
func extensionsOf(expr string) []string {
	start := strings.Index(expr, `\.(`)
	end := strings.LastIndex(expr, ")")
	if start < 0 || end < start {
		return nil
	}
	var exts []string
	for _, e := range strings.Split(expr[start+3:end], "|") {
		exts = append(exts, "."+e)
	}
	return exts
}

func defineValue(n tree.Node) string {
	v := tree.ToAny(n)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// banner builds the banner plugin output. Text is wrapped in a comment
// unless raw is set.
func banner(options tree.Mapping) map[string]string {
	text := options.String("banner")
	if text == "" {
		return nil
	}
	if !options.Bool("raw") {
		text = "/*! " + text + " */"
	}
	return map[string]string{"js": text, "css": text}
}

func formatMessages(msgs []api.Message, kind api.MessageKind) []string {
	if len(msgs) == 0 {
		return nil
	}
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind})
	out := make([]string, 0, len(formatted))
	for _, m := range formatted {
		out = append(out, strings.TrimRight(m, "\n")+"\n")
	}
	return out
}

// clean removes the target's output folder when a clean plugin is present.
// Folders outside the plugin's root, and the root itself, are never removed.
func clean(cfg *bundle.Config) error {
	plugins := cfg.PluginsNamed(bundle.PluginClean)
	if len(plugins) == 0 {
		return nil
	}
	root := plugins[0].Options.String("root")
	if root == "" {
		root = cfg.Context
	}
	rel, err := filepath.Rel(root, cfg.Output.Path)
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return fmt.Errorf("refusing to clean %s outside of %s", cfg.Output.Path, root)
	}
	return os.RemoveAll(cfg.Output.Path)
}
