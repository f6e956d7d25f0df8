// Package plugins assembles the ordered build-time plugin list.
//
// Order: clean, minify + define (production), extract-css, ignore-locales,
// additional plugins from the configuration, then one html plugin per entry.
package plugins

import (
	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/entry"
	"github.com/remixure/remixure/internal/tree"
)

// Build returns the plugin list for opts, entries and bc.
func Build(opts *config.Options, entries entry.Map, bc config.BuildContext) []bundle.Plugin {
	var plugins []bundle.Plugin

	if opts.CleanBeforeBuild {
		plugins = append(plugins, bundle.Plugin{
			Name: bundle.PluginClean,
			Options: tree.Mapping{
				"paths": tree.Strings(opts.OutputFolder(bc)),
				"root":  tree.String(bc.BaseFolder),
			},
		})
	}

	if !bc.IsDevelopment() && !opts.IgnoreUglify {
		plugins = append(plugins,
			bundle.Plugin{
				Name: bundle.PluginMinify,
				Options: tree.Mapping{
					"compress":  tree.Bool(false),
					"sourceMap": tree.Bool(opts.EnableSourceMap),
				},
			},
			bundle.Plugin{
				Name:    bundle.PluginDefine,
				Options: tree.Mapping{"process.env.NODE_ENV": tree.String(`"production"`)},
			},
		)
	}

	plugins = append(plugins, bundle.Plugin{
		Name: bundle.PluginExtractCSS,
		Options: tree.Mapping{
			"filename":      tree.String(CSSFilename(opts, bc)),
			"chunkFilename": tree.String("css/[id].css"),
		},
	})

	if opts.UseMoment || config.HasDependency(bc, "moment") {
		plugins = append(plugins, bundle.Plugin{
			Name: bundle.PluginIgnoreLocales,
			Options: tree.Mapping{
				"resourceRegExp": tree.MustPattern(`^\./locale$`),
				"contextRegExp":  tree.MustPattern(`moment$`),
			},
		})
	}

	for _, p := range opts.AdditionalPlugins {
		options, _ := tree.FromAny(p.Options).(tree.Mapping)
		plugins = append(plugins, bundle.Plugin{Name: p.Name, Options: options})
	}

	if opts.HTMLPath != "" {
		template := bc.Path(opts.HTMLPath)
		for _, name := range entries.Names() {
			chunks := append(append([]string{}, opts.Chunks...), name)
			options := tree.Mapping{
				"filename": tree.String(name + ".html"),
				"chunks":   tree.Strings(chunks...),
				"inject":   tree.Bool(true),
				"template": tree.String(template),
			}
			if !bc.IsDevelopment() {
				options["minify"] = htmlMinify()
			}
			plugins = append(plugins, bundle.Plugin{Name: bundle.PluginHTML, Options: options})
		}
	}

	return plugins
}

// CSSFilename is the extracted stylesheet name pattern.
func CSSFilename(opts *config.Options, bc config.BuildContext) string {
	if opts.StableNames(bc) {
		return "css/[name].css"
	}
	return "css/[name].[hash].css"
}

func htmlMinify() tree.Mapping {
	m := tree.Mapping{}
	for _, k := range []string{
		"removeComments",
		"collapseWhitespace",
		"removeRedundantAttributes",
		"useShortDoctype",
		"removeEmptyAttributes",
		"removeStyleLinkTypeAttributes",
		"keepClosingSlash",
		"minifyJS",
		"minifyCSS",
		"minifyURLs",
	} {
		m[k] = tree.Bool(true)
	}
	return m
}
