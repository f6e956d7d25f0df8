// Package assemble builds the complete bundler configuration of a run from
// the loaded options and the discovered entries.
package assemble

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/entry"
	"github.com/remixure/remixure/internal/plugins"
	"github.com/remixure/remixure/internal/rules"
)

// Extensions are tried in order when an import omits its extension.
var Extensions = []string{".web.js", ".js", ".json", ".web.jsx", ".jsx"}

// Config returns the assembled configuration for opts, entries and bc.
func Config(opts *config.Options, entries entry.Map, bc config.BuildContext) *bundle.Config {
	mode := bundle.ModeProduction
	if bc.IsDevelopment() {
		mode = bundle.ModeDevelopment
	}

	cfg := &bundle.Config{
		Mode:    mode,
		Bail:    !bc.IsDevelopment(),
		Context: bc.BaseFolder,
		Entry:   map[string]string(entries),
		Output:  Output(opts, bc),
		Resolve: bundle.Resolve{
			Modules:    Modules(opts, bc),
			Extensions: append([]string(nil), Extensions...),
			Alias:      Alias(opts, bc),
		},
		Rules:     rules.Build(opts, bc),
		Plugins:   plugins.Build(opts, entries, bc),
		Target:    opts.EsTarget(),
		Splitting: len(opts.Chunks) > 0,
	}
	if opts.SourceMaps(bc) {
		cfg.Devtool = "source-map"
	}
	return cfg
}

// Output returns the output settings: hashed names in production unless
// hashes are disabled.
func Output(opts *config.Options, bc config.BuildContext) bundle.Output {
	out := bundle.Output{
		Path:          opts.OutputFolder(bc),
		Filename:      "js/[name].[chunkhash:8].min.js",
		ChunkFilename: "js/[name].[chunkhash:8].chunk.min.js",
		PublicPath:    opts.PublicPath,
	}
	if opts.StableNames(bc) {
		out.Filename = "js/[name].min.js"
		out.ChunkFilename = "js/[name].chunk.min.js"
	}
	if out.PublicPath == "" {
		out.PublicPath = "/"
	}
	return out
}

// Modules lists the resolution roots: the source folder, node_modules,
// plugins and config under the base folder, then NODE_PATH entries.
func Modules(opts *config.Options, bc config.BuildContext) []string {
	modules := []string{
		opts.SourceFolder(bc),
		bc.Path("node_modules"),
		bc.Path("plugins"),
		bc.Path("config"),
	}
	for _, p := range filepath.SplitList(os.Getenv("NODE_PATH")) {
		if p = strings.TrimSpace(p); p != "" {
			modules = append(modules, p)
		}
	}
	return modules
}

// Alias merges the configured aliases over the built-in ones.
func Alias(opts *config.Options, bc config.BuildContext) map[string]string {
	src := opts.SourceFolder(bc)
	alias := map[string]string{
		"components": filepath.Join(src, "components", "index.js"),
		"assets":     filepath.Join(src, "assets"),
	}
	for k, v := range opts.Alias {
		alias[k] = v
	}
	return alias
}
