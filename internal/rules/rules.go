// Package rules assembles the ordered transformation rules of a build.
//
// Rules are appended in a fixed order and the first matching rule wins for a
// given file:
//
//  1. script transform
//  2. stylesheet chains (.css, .less), when less is configured
//  3. unscoped stylesheet rule for ignored paths and node_modules
//  4. raster images
//  5. markup fragments
//  6. fonts and vector icons
//
// Inside a rule the loader chain runs last to first: extraction wraps the
// css loader, which consumes postcss output, which consumes less output.
package rules

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/tree"
)

const (
	LocalIdentName = "[name]__[local]___[hash:base64:5]"
	ImageLimit     = 10000
	HTMLLimit      = 100
	FontLimit      = 10000
)

// Rule names.
const (
	NameScript   = "script"
	NameCSS      = "css"
	NameLess     = "less"
	NameUnscoped = "unscoped-styles"
	NameImage    = "image"
	NameHTML     = "html"
	NameFont     = "font"
)

var nodeModules = tree.MustPattern(`node_modules`)

// Build returns the rules for opts under bc. Patterns in opts are expected
// to have passed config.Validate.
func Build(opts *config.Options, bc config.BuildContext) []bundle.Rule {
	rules := []bundle.Rule{scriptRule(opts)}

	if opts.Less != nil {
		ignored := ignoreList(opts)
		rules = append(rules, styleRules(opts, bc, ignored)...)
		rules = append(rules, unscopedRule(opts, bc, ignored))
	}

	name := StandardName(opts, bc)
	rules = append(rules,
		urlRule(NameImage, `\.(bmp|gif|jpeg|jpg|png)$`, ImageLimit, "static/media/"+name, nil),
		urlRule(NameHTML, `\.(html)$`, HTMLLimit, "static/html/"+name, []*tree.Pattern{htmlTemplate(opts)}),
		fontRule(opts),
	)
	return rules
}

// StandardName is the emitted asset name pattern: stable in development or
// when hashes are disabled, content-hashed otherwise.
func StandardName(opts *config.Options, bc config.BuildContext) string {
	if opts.StableNames(bc) {
		return "[name].[ext]"
	}
	return "[name].[hash:8].[ext]"
}

func scriptRule(opts *config.Options) bundle.Rule {
	var except []*tree.Pattern
	for _, m := range opts.CompiledNodeModules {
		except = append(except, tree.MustPattern("node_modules/"+m))
	}

	presetEnv := tree.Sequence{
		tree.String("env"),
		tree.Mapping{
			"targets":     tree.Mapping{"browsers": tree.Strings(opts.BrowserList()...)},
			"modules":     tree.Bool(false),
			"useBuiltIns": tree.Bool(true),
		},
	}
	plugins := tree.Sequence{
		tree.String("transform-decorators-legacy"),
		tree.String("transform-class-properties"),
		tree.String("transform-object-rest-spread"),
		tree.String("syntax-dynamic-import"),
		tree.String("transform-runtime"),
	}
	if opts.Antd != nil {
		plugins = append(plugins, tree.Sequence{
			tree.String("import"),
			tree.Mapping{
				"libraryName":      tree.String("antd"),
				"libraryDirectory": tree.String("es"),
				"style":            tree.Bool(true),
			},
		})
	}

	return bundle.Rule{
		Name:          NameScript,
		Test:          tree.MustPattern(`\.(js|jsx)$`),
		Exclude:       []*tree.Pattern{nodeModules},
		ExcludeExcept: except,
		Use: []bundle.Loader{{
			Name: bundle.LoaderScript,
			Options: tree.Mapping{
				"presets":        tree.Sequence{presetEnv, tree.Sequence{tree.String("react")}},
				"plugins":        plugins,
				"cacheDirectory": tree.Bool(true),
				"compact":        tree.Bool(true),
			},
		}},
	}
}

// ignoreList returns the path patterns excluded from scoped stylesheet rules.
func ignoreList(opts *config.Options) []string {
	var ignored []string
	if opts.Antd != nil {
		ignored = append(ignored, "antd")
	}
	return append(ignored, opts.IgnoreCSSModule...)
}

func cssLoader(opts *config.Options, bc config.BuildContext, modules bool) bundle.Loader {
	options := tree.Mapping{
		"importLoaders": tree.Int(1),
		"sourceMap":     tree.Bool(opts.SourceMaps(bc)),
		"minimize":      tree.Bool(!bc.IsDevelopment()),
		"modules":       tree.Bool(modules),
	}
	if modules {
		options["localIdentName"] = tree.String(LocalIdentName)
	}
	return bundle.Loader{Name: bundle.LoaderCSS, Options: options}
}

// preprocessChain returns css → [postcss] → less for a .less file.
func preprocessChain(opts *config.Options, bc config.BuildContext, modules bool) []bundle.Loader {
	css := cssLoader(opts, bc, modules)
	chain := []bundle.Loader{css}

	if opts.Less.EnablePostCSS {
		chain = append(chain, bundle.Loader{
			Name: bundle.LoaderPostCSS,
			Options: tree.Mapping{
				"sourceMap": tree.Bool(true),
				"plugins":   tree.Strings("autoprefixer"),
				"browsers":  tree.Strings(opts.BrowserList()...),
			},
		})
		css.Options["importLoaders"] = tree.Int(css.Options.Int("importLoaders", 1) + 1)
	}

	lessOpts := tree.Mapping{}
	if o, ok := tree.FromAny(opts.Less.Options).(tree.Mapping); ok {
		lessOpts = o
	}
	lessOpts["javascriptEnabled"] = tree.Bool(true)
	if opts.Antd != nil && len(opts.Antd.Theme) > 0 {
		lessOpts["modifyVars"] = tree.FromAny(opts.Antd.Theme)
	}
	return append(chain, bundle.Loader{Name: bundle.LoaderLess, Options: lessOpts})
}

func extract() bundle.Loader {
	return bundle.Loader{Name: bundle.LoaderExtract}
}

func styleRules(opts *config.Options, bc config.BuildContext, ignored []string) []bundle.Rule {
	exclude := []*tree.Pattern{nodeModules}
	if len(ignored) > 0 {
		exclude = append([]*tree.Pattern{tree.MustPattern(strings.Join(ignored, "|"))}, exclude...)
	}
	modules := opts.Less.EnableCSSModule

	return []bundle.Rule{
		{
			Name:    NameCSS,
			Test:    tree.MustPattern(`\.css$`),
			Exclude: exclude,
			Use:     []bundle.Loader{extract(), cssLoader(opts, bc, modules)},
		},
		{
			Name:    NameLess,
			Test:    tree.MustPattern(`\.less$`),
			Exclude: exclude,
			Use:     append([]bundle.Loader{extract()}, preprocessChain(opts, bc, modules)...),
		},
	}
}

// unscopedRule covers third-party and explicitly ignored styles, which must
// keep their global class names.
func unscopedRule(opts *config.Options, bc config.BuildContext, ignored []string) bundle.Rule {
	include := []*tree.Pattern{nodeModules}
	if len(ignored) > 0 {
		include = append([]*tree.Pattern{tree.MustPattern(strings.Join(ignored, "|"))}, include...)
	}
	return bundle.Rule{
		Name:    NameUnscoped,
		Test:    tree.MustPattern(`\.(css|less)$`),
		Include: include,
		Use:     append([]bundle.Loader{extract()}, preprocessChain(opts, bc, false)...),
	}
}

func urlRule(name, test string, limit int64, fileName string, exclude []*tree.Pattern) bundle.Rule {
	return bundle.Rule{
		Name:    name,
		Test:    tree.MustPattern(test),
		Exclude: exclude,
		Use: []bundle.Loader{{
			Name: bundle.LoaderURL,
			Options: tree.Mapping{
				"limit": tree.Int(limit),
				"name":  tree.String(fileName),
			},
		}},
	}
}

// htmlTemplate matches the page template so that it is never inlined as a
// fragment. Relative paths match at a path segment boundary.
func htmlTemplate(opts *config.Options) *tree.Pattern {
	if opts.HTMLPath == "" {
		return tree.MustPattern(`/index\.html$`)
	}
	p := filepath.ToSlash(filepath.Clean(opts.HTMLPath))
	if path.IsAbs(p) {
		return tree.MustPattern("^" + regexp.QuoteMeta(p) + "$")
	}
	return tree.MustPattern(`(?:^|/)` + regexp.QuoteMeta(p) + "$")
}

func fontRule(opts *config.Options) bundle.Rule {
	r := urlRule(NameFont, `\.(woff|svg|eot|ttf|eog)$`, FontLimit, "[name].[ext]", nil)
	if settings, ok := tree.FromAny(opts.FontSettings).(tree.Mapping); ok {
		for k, v := range settings {
			r.Use[0].Options[k] = v
		}
	}
	return r
}
