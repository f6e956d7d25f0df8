package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixure/remixure/internal/tree"
)

func sampleConfig() *Config {
	return &Config{
		Mode:  ModeProduction,
		Entry: map[string]string{"home": "/p/src/home.js"},
		Output: Output{
			Path:     "/p/dist",
			Filename: "js/[name].[hash].min.js",
		},
		Resolve: Resolve{
			Modules:    []string{"/p/src"},
			Extensions: []string{".js"},
			Alias:      map[string]string{"i18n": "/p/src/i18n/${lang}"},
		},
		Rules: []Rule{{
			Name:    "script",
			Test:    tree.MustPattern(`\.(js|jsx)$`),
			Exclude: []*tree.Pattern{tree.MustPattern(`node_modules`)},
			Use: []Loader{{
				Name:    LoaderScript,
				Options: tree.Mapping{"presets": tree.Strings("env", "react")},
			}},
		}},
		Plugins: []Plugin{{Name: PluginHTML, Options: tree.Mapping{"filename": tree.String("home.html")}}},
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := sampleConfig()
	c := orig.Clone()

	c.Entry["about"] = "/p/src/about.js"
	c.Resolve.Alias["i18n"] = "/p/src/i18n/en"
	c.Resolve.Modules[0] = "/elsewhere"
	c.Rules[0].Use[0].Options["presets"] = tree.Strings("none")
	c.Rules[0].Exclude[0] = tree.MustPattern(`vendor`)
	c.Rules = append(c.Rules, Rule{Name: "lang"})
	c.Plugins[0].Options["filename"] = tree.String("changed.html")
	c.Output.Path = "/p/dist/en"

	assert.Len(t, orig.Entry, 1)
	assert.Equal(t, "/p/src/i18n/${lang}", orig.Resolve.Alias["i18n"])
	assert.Equal(t, "/p/src", orig.Resolve.Modules[0])
	assert.Equal(t, []string{"env", "react"}, orig.Rules[0].Use[0].Options.Strings("presets"))
	assert.Equal(t, "node_modules", orig.Rules[0].Exclude[0].String())
	assert.Len(t, orig.Rules, 1)
	assert.Equal(t, "home.html", orig.Plugins[0].Options.String("filename"))
	assert.Equal(t, "/p/dist", orig.Output.Path)
}

func TestCloneSharesPatternsAndCustom(t *testing.T) {
	custom := &struct{ n int }{n: 1}
	orig := sampleConfig()
	orig.Plugins = append(orig.Plugins, Plugin{Name: "custom", Custom: custom})

	c := orig.Clone()
	assert.Same(t, orig.Rules[0].Test, c.Rules[0].Test)
	assert.Same(t, custom, c.Plugins[1].Custom)
	assert.Nil(t, (*Config)(nil).Clone())
}

func TestRuleMatches(t *testing.T) {
	r := Rule{
		Test:          tree.MustPattern(`\.(js|jsx)$`),
		Exclude:       []*tree.Pattern{tree.MustPattern(`node_modules`)},
		ExcludeExcept: []*tree.Pattern{tree.MustPattern(`node_modules/my-ui`)},
	}
	assert.True(t, r.Matches("/p/src/home.js"))
	assert.True(t, r.Matches("/p/src/app.jsx"))
	assert.False(t, r.Matches("/p/src/app.css"))
	assert.False(t, r.Matches("/p/node_modules/react/index.js"))
	assert.True(t, r.Matches("/p/node_modules/my-ui/button.js"))
	assert.True(t, r.Matches(`C:\p\node_modules\my-ui\button.js`))

	narrow := Rule{
		Test:    tree.MustPattern(`\.(css|less)$`),
		Include: []*tree.Pattern{tree.MustPattern(`antd`)},
	}
	assert.True(t, narrow.Matches("/p/node_modules/antd/lib/style.less"))
	assert.False(t, narrow.Matches("/p/src/style.less"))
}

func TestFindRuleAndPlugins(t *testing.T) {
	c := sampleConfig()
	c.Rules = append(c.Rules, Rule{Name: "catch-all", Use: []Loader{{Name: LoaderURL}}})

	r, ok := c.FindRule("/p/src/home.js")
	require.True(t, ok)
	assert.Equal(t, "script", r.Name)

	r, ok = c.FindRule("/p/src/logo.png")
	require.True(t, ok)
	assert.Equal(t, "catch-all", r.Name)
	_, ok = r.Loader(LoaderURL)
	assert.True(t, ok)
	_, ok = r.Loader(LoaderCSS)
	assert.False(t, ok)

	assert.True(t, c.HasPlugin(PluginHTML))
	assert.False(t, c.HasPlugin(PluginClean))
	assert.Len(t, c.PluginsNamed(PluginHTML), 1)
}

func TestStatsHasErrors(t *testing.T) {
	assert.False(t, (*Stats)(nil).HasErrors())
	assert.False(t, (&Stats{}).HasErrors())
	assert.True(t, (&Stats{Errors: []string{"boom"}}).HasErrors())
}
