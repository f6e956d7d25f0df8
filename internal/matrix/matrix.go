// Package matrix expands one assembled bundler configuration into the build
// targets of a run: one per language for internationalized projects, a single
// "default" target otherwise.
package matrix

import (
	"path/filepath"
	"strings"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/tree"
)

// DefaultLanguage names the target of a project without i18n.
const DefaultLanguage = "default"

// LangRuleName names the rule appended for lang.json files.
const LangRuleName = "lang"

// Target is one build of the run.
type Target struct {
	Language string
	Config   *bundle.Config
}

// OutputPath is the directory the target writes to.
func (t Target) OutputPath() string {
	return t.Config.Output.Path
}

// Expand returns the targets for assembled. Every target owns a deep copy of
// assembled; the input is never modified.
//
// In production one target is produced per configured language. In
// development only the default language (or the first language) is built.
func Expand(assembled *bundle.Config, opts *config.Options, bc config.BuildContext) []Target {
	languages := opts.Languages()
	if len(languages) == 0 {
		return []Target{{Language: DefaultLanguage, Config: assembled.Clone()}}
	}

	if bc.IsDevelopment() {
		languages = []string{opts.DefaultLanguage()}
	}

	targets := make([]Target, 0, len(languages))
	for _, lang := range languages {
		targets = append(targets, Target{Language: lang, Config: localize(assembled, lang)})
	}
	return targets
}

func localize(assembled *bundle.Config, lang string) *bundle.Config {
	c := assembled.Clone()

	c.Rules = append(c.Rules, bundle.Rule{
		Name: LangRuleName,
		Test: tree.MustPattern(`lang\.json$`),
		Use: []bundle.Loader{{
			Name:    bundle.LoaderLang,
			Options: tree.Mapping{"language": tree.String(lang)},
		}},
	})

	c.Plugins = append(c.Plugins,
		bundle.Plugin{
			Name:    bundle.PluginInterpolateHTML,
			Options: tree.Mapping{"language": tree.String(lang)},
		},
		bundle.Plugin{Name: bundle.PluginProgress},
	)

	for k, v := range c.Resolve.Alias {
		c.Resolve.Alias[k] = strings.ReplaceAll(v, bundle.LangToken, lang)
	}

	c.Output.Path = filepath.Join(c.Output.Path, lang)
	return c
}
