// Package bundle models the assembled bundler configuration handed to the
// bundling engine: entries, output naming, module resolution, the ordered
// transformation rules and the ordered plugin list.
//
// The model is engine-neutral. Loader and plugin option payloads are option
// trees (see package tree) so that a whole Config can be deep-cloned when the
// build matrix fans it out per language.
package bundle

import (
	"maps"
	"slices"
	"strings"

	"github.com/remixure/remixure/internal/tree"
)

// Mode is the bundler mode baked into a configuration.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// Config is the assembled bundler configuration.
type Config struct {
	Mode    Mode
	Bail    bool
	// Context is the base directory relative paths are resolved against.
	Context string
	Entry   map[string]string
	Output  Output
	Resolve Resolve
	Rules   []Rule
	Plugins []Plugin

	// Devtool is "source-map" when source maps are emitted, "" otherwise.
	Devtool string
	// Target is the ECMAScript level the engine lowers syntax to.
	Target string
	// Splitting enables shared chunks (and ESM output).
	Splitting bool
}

// Output controls where and under which names bundles are written.
type Output struct {
	Path          string
	Filename      string
	ChunkFilename string
	PublicPath    string
}

// Resolve controls module resolution.
type Resolve struct {
	Modules    []string
	Extensions []string
	Alias      map[string]string
}

// Rule selects source files by path and names the loader chain applied to
// them. Loaders run last to first, the same order a webpack "use" list runs.
type Rule struct {
	Name string
	Test *tree.Pattern
	// Include, when non-empty, restricts the rule to paths matching any pattern.
	Include []*tree.Pattern
	// Exclude drops paths matching any pattern, unless they also match one of
	// ExcludeExcept.
	Exclude       []*tree.Pattern
	ExcludeExcept []*tree.Pattern
	Use           []Loader
}

// Loader is one step of a rule's loader chain.
type Loader struct {
	Name    string
	Options tree.Mapping
}

// Plugin is one build-time plugin. Custom carries an opaque engine-native
// value supplied programmatically; it is shared, never copied.
type Plugin struct {
	Name    string
	Options tree.Mapping
	Custom  any
}

// Well-known loader names.
const (
	LoaderScript  = "script"
	LoaderExtract = "extract-css"
	LoaderCSS     = "css"
	LoaderPostCSS = "postcss"
	LoaderLess    = "less"
	LoaderURL     = "url"
	LoaderLang    = "lang"
)

// Well-known plugin names.
const (
	PluginClean           = "clean"
	PluginMinify          = "minify"
	PluginDefine          = "define"
	PluginExtractCSS      = "extract-css"
	PluginIgnoreLocales   = "ignore-locales"
	PluginHTML            = "html"
	PluginInterpolateHTML = "interpolate-html"
	PluginProgress        = "progress"
)

// LangToken is substituted by the concrete language code in alias values.
const LangToken = "${lang}"

// Matches reports whether the rule applies to path.
func (r Rule) Matches(path string) bool {
	if r.Test != nil && !r.Test.MatchString(path) {
		return false
	}
	if len(r.Include) > 0 && !anyMatch(r.Include, path) {
		return false
	}
	if anyMatch(r.Exclude, path) && !anyMatch(r.ExcludeExcept, path) {
		return false
	}
	return true
}

// Loader returns the first loader in the chain with the given name.
func (r Rule) Loader(name string) (Loader, bool) {
	for _, l := range r.Use {
		if l.Name == name {
			return l, true
		}
	}
	return Loader{}, false
}

func anyMatch(patterns []*tree.Pattern, path string) bool {
	// Windows paths are matched with forward slashes.
	path = strings.ReplaceAll(path, "\\", "/")
	for _, p := range patterns {
		if p.MatchString(path) {
			return true
		}
	}
	return false
}

// FindRule returns the first rule matching path.
func (c *Config) FindRule(path string) (Rule, bool) {
	for _, r := range c.Rules {
		if r.Matches(path) {
			return r, true
		}
	}
	return Rule{}, false
}

// PluginsNamed returns every plugin with the given name, in order.
func (c *Config) PluginsNamed(name string) []Plugin {
	var out []Plugin
	for _, p := range c.Plugins {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// HasPlugin reports whether a plugin with the given name is present.
func (c *Config) HasPlugin(name string) bool {
	return len(c.PluginsNamed(name)) > 0
}

// Clone returns a deep copy of the configuration. Option trees are cloned
// structurally; patterns and Custom plugin values are shared.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Entry = maps.Clone(c.Entry)
	out.Resolve.Modules = slices.Clone(c.Resolve.Modules)
	out.Resolve.Extensions = slices.Clone(c.Resolve.Extensions)
	out.Resolve.Alias = maps.Clone(c.Resolve.Alias)

	if c.Rules != nil {
		out.Rules = make([]Rule, len(c.Rules))
		for i, r := range c.Rules {
			out.Rules[i] = r.Clone()
		}
	}
	if c.Plugins != nil {
		out.Plugins = make([]Plugin, len(c.Plugins))
		for i, p := range c.Plugins {
			out.Plugins[i] = p.Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	out.Include = slices.Clone(r.Include)
	out.Exclude = slices.Clone(r.Exclude)
	out.ExcludeExcept = slices.Clone(r.ExcludeExcept)
	if r.Use != nil {
		out.Use = make([]Loader, len(r.Use))
		for i, l := range r.Use {
			out.Use[i] = Loader{Name: l.Name, Options: tree.CloneMapping(l.Options)}
		}
	}
	return out
}

// Clone returns a deep copy of the plugin.
func (p Plugin) Clone() Plugin {
	return Plugin{Name: p.Name, Options: tree.CloneMapping(p.Options), Custom: p.Custom}
}
