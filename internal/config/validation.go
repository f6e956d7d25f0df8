package config

import (
	"fmt"
	"regexp"

	"golang.org/x/text/language"

	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/validation"
)

// Validate checks the merged options. Every problem found is reported in one
// error.
func Validate(opts *Options) error {
	var vec rerrors.ValidationErrorCollection

	for _, f := range []struct{ field, path string }{
		{"srcFolder", opts.SrcFolder},
		{"targetFolder", opts.TargetFolder},
		{"htmlPath", opts.HTMLPath},
	} {
		if f.path == "" {
			continue
		}
		if err := validation.ValidateProjectPath(f.path); err != nil {
			vec.AddField(f.field, f.path, err.Error())
		}
	}

	for _, f := range []struct {
		field    string
		patterns []string
	}{
		{"ignoreCSSModule", opts.IgnoreCSSModule},
		{"compiledNodeModules", opts.CompiledNodeModules},
	} {
		for _, expr := range f.patterns {
			if _, err := regexp.Compile(expr); err != nil {
				vec.AddField(f.field, expr, fmt.Sprintf("not a valid pattern: %v", err))
			}
		}
	}

	if opts.I18n != nil {
		for _, lang := range opts.I18n.Languages {
			if _, err := language.Parse(lang); err != nil {
				vec.AddField("i18n.languages", lang, fmt.Sprintf("not a valid language tag: %v", err))
			}
		}
		if d := opts.I18n.DefaultLanguage; d != "" {
			if _, err := language.Parse(d); err != nil {
				vec.AddField("i18n.defaultLanguage", d, fmt.Sprintf("not a valid language tag: %v", err))
			}
		}
	}

	if opts.Entry != nil {
		for name, path := range opts.Entry.Entries {
			if name == "" || path == "" {
				vec.AddField("entry.entries", name, "entry names and paths must not be empty")
			}
		}
	}

	for i, p := range opts.AdditionalPlugins {
		if p.Name == "" {
			vec.AddField(fmt.Sprintf("additionalPlugins[%d].name", i), p.Name, "plugin name must not be empty")
		}
	}

	if ds := opts.DevServer; ds != nil {
		if ds.Port < 0 || ds.Port > 65535 {
			vec.AddField("devServer.port", ds.Port, "port must be between 0 and 65535")
		}
		if ds.HTTPS && (ds.Cert == "" || ds.Key == "") {
			vec.AddField("devServer.https", ds.HTTPS, "https requires both cert and key")
		}
		if ds.DefaultApp != "" {
			if u := validation.BrowserURL(ds.HTTPS, "localhost", DefaultDevPort, ds.DefaultApp); validation.ValidateURL(u) != nil {
				vec.AddField("devServer.defaultApp", ds.DefaultApp, "contains characters that are not allowed in a URL")
			}
		}
	}

	if opts.Inspection != "" {
		if err := validation.ValidateURL(opts.Inspection); err != nil {
			vec.AddField("inspection", opts.Inspection, err.Error())
		}
	}

	if err := vec.ToRemixureError(); err != nil {
		return err
	}
	return nil
}
