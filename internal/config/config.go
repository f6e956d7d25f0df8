// Package config loads the remixure project configuration.
//
// A configuration is assembled from three layers: built-in defaults, the
// required base file config/config.default.{yaml,yml,json} and the optional
// environment file config/config.<env>.{yaml,yml,json}. Layers are merged
// shallowly: a top-level key present in a later layer replaces the earlier
// value as a whole, nested mappings included.
package config

import (
	"path/filepath"
)

// Options is the typed view of the merged configuration.
type Options struct {
	SrcFolder           string            `yaml:"srcFolder"`
	TargetFolder        string            `yaml:"targetFolder,omitempty"`
	PublicPath          string            `yaml:"publicPath"`
	Entry               *EntryOptions     `yaml:"entry,omitempty"`
	Less                *LessOptions      `yaml:"less,omitempty"`
	IgnoreCSSModule     []string          `yaml:"ignoreCSSModule,omitempty"`
	I18n                *I18nOptions      `yaml:"i18n,omitempty"`
	IgnoreNameHash      bool              `yaml:"ignoreNameHash"`
	CleanBeforeBuild    bool              `yaml:"cleanBeforeBuild"`
	IgnoreUglify        bool              `yaml:"ignoreUglify,omitempty"`
	EnableSourceMap     bool              `yaml:"enableSourceMap,omitempty"`
	Antd                *AntdOptions      `yaml:"antd,omitempty"`
	CompiledNodeModules []string          `yaml:"compiledNodeModules"`
	HTMLPath            string            `yaml:"htmlPath,omitempty"`
	Alias               map[string]string `yaml:"alias,omitempty"`
	Chunks              []string          `yaml:"chunks,omitempty"`
	UseMoment           bool              `yaml:"useMoment,omitempty"`
	AdditionalPlugins   []PluginSpec      `yaml:"additionalPlugins,omitempty"`
	FontSettings        map[string]any    `yaml:"fontSettings,omitempty"`
	Browsers            []string          `yaml:"browsers,omitempty"`
	Target              string            `yaml:"target,omitempty"`
	DevServer           *DevServerOptions `yaml:"devServer,omitempty"`
	Inspection          string            `yaml:"inspection,omitempty"`

	// Extra keeps keys remixure does not interpret so `remixure config` can
	// print the merged configuration faithfully.
	Extra map[string]any `yaml:",inline"`
}

// EntryOptions selects the entry scripts.
type EntryOptions struct {
	Entries map[string]string `yaml:"entries,omitempty"`
	Exclude []string          `yaml:"exclude,omitempty"`
}

// LessOptions configures stylesheet processing.
type LessOptions struct {
	EnablePostCSS   bool           `yaml:"enablePostCSS"`
	EnableCSSModule bool           `yaml:"enableCSSModule"`
	Options         map[string]any `yaml:"options,omitempty"`
}

// I18nOptions lists the languages built for an internationalized project.
type I18nOptions struct {
	Languages       []string `yaml:"languages"`
	DefaultLanguage string   `yaml:"defaultLanguage,omitempty"`
}

// AntdOptions turns on theming for the antd component library.
type AntdOptions struct {
	Theme map[string]any `yaml:"theme,omitempty"`
}

// PluginSpec is one user-supplied plugin appended verbatim to the plugin list.
type PluginSpec struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options,omitempty"`
}

// DevServerOptions configures the development server.
type DevServerOptions struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	HTTPS      bool   `yaml:"https,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	DefaultApp string `yaml:"defaultApp,omitempty"`
}

const (
	DefaultTargetFolder = "dist"
	DefaultDevHost      = "0.0.0.0"
	DefaultDevPort      = 8888
	DefaultTarget       = "es2015"
	DevEnv              = "dev"
)

// DefaultBrowsers is the browser list used when none is configured.
var DefaultBrowsers = []string{">1%", "last 4 versions", "Firefox ESR", "not ie < 9"}

// BuildContext is the immutable per-run context threaded through every stage.
type BuildContext struct {
	Env        string
	BaseFolder string
}

// IsDevelopment reports whether the run builds in development mode.
func (bc BuildContext) IsDevelopment() bool {
	return bc.Env == DevEnv
}

// ModeName returns "development" or "production".
func (bc BuildContext) ModeName() string {
	if bc.IsDevelopment() {
		return "development"
	}
	return "production"
}

// Path joins elements onto the base folder.
func (bc BuildContext) Path(elem ...string) string {
	return filepath.Join(append([]string{bc.BaseFolder}, elem...)...)
}

// SourceFolder returns the absolute source folder.
func (o *Options) SourceFolder(bc BuildContext) string {
	src := o.SrcFolder
	if src == "" {
		src = "src"
	}
	return bc.Path(src)
}

// OutputFolder returns the absolute output folder.
func (o *Options) OutputFolder(bc BuildContext) string {
	target := o.TargetFolder
	if target == "" {
		target = DefaultTargetFolder
	}
	return bc.Path(target)
}

// StableNames reports whether emitted file names omit content hashes.
func (o *Options) StableNames(bc BuildContext) bool {
	return o.IgnoreNameHash || bc.IsDevelopment()
}

// SourceMaps reports whether source maps are emitted.
func (o *Options) SourceMaps(bc BuildContext) bool {
	return o.EnableSourceMap || bc.IsDevelopment()
}

// Languages returns the configured language list, nil without i18n.
func (o *Options) Languages() []string {
	if o.I18n == nil {
		return nil
	}
	return o.I18n.Languages
}

// DefaultLanguage returns the language built in development: the configured
// default, else the first language, else "".
func (o *Options) DefaultLanguage() string {
	if o.I18n == nil {
		return ""
	}
	if o.I18n.DefaultLanguage != "" {
		return o.I18n.DefaultLanguage
	}
	if len(o.I18n.Languages) > 0 {
		return o.I18n.Languages[0]
	}
	return ""
}

// EsTarget returns the syntax level output is lowered to.
func (o *Options) EsTarget() string {
	if o.Target == "" {
		return DefaultTarget
	}
	return o.Target
}

// BrowserList returns the configured browsers or the default list.
func (o *Options) BrowserList() []string {
	if len(o.Browsers) == 0 {
		return DefaultBrowsers
	}
	return o.Browsers
}

// DevServerAddress returns the listen host and port with defaults applied.
func (o *Options) DevServerAddress() (string, int) {
	host, port := DefaultDevHost, DefaultDevPort
	if o.DevServer != nil {
		if o.DevServer.Host != "" {
			host = o.DevServer.Host
		}
		if o.DevServer.Port != 0 {
			port = o.DevServer.Port
		}
	}
	return host, port
}

// defaults returns the built-in base layer.
func defaults() layer {
	return layer{
		"srcFolder":           "./src",
		"publicPath":          "/",
		"less":                map[string]any{"enablePostCSS": true, "enableCSSModule": true},
		"htmlPath":            "public/index.html",
		"cleanBeforeBuild":    true,
		"compiledNodeModules": []any{},
		"ignoreCSSModule":     []any{},
		"i18n":                map[string]any{"languages": []any{"en", "zh-CN"}, "defaultLanguage": "zh-CN"},
		"ignoreNameHash":      false,
	}
}
