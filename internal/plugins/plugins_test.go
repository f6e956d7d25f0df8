package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/entry"
	"github.com/remixure/remixure/internal/tree"
)

func pluginNames(ps []bundle.Plugin) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func contexts(t *testing.T) (prod, dev config.BuildContext) {
	base := t.TempDir()
	return config.BuildContext{Env: "prod", BaseFolder: base}, config.BuildContext{Env: config.DevEnv, BaseFolder: base}
}

var twoEntries = entry.Map{"home": "/p/src/home.js", "about": "/p/src/about.js"}

func TestBuildOrderProduction(t *testing.T) {
	prod, _ := contexts(t)
	opts := &config.Options{
		CleanBeforeBuild:  true,
		UseMoment:         true,
		HTMLPath:          "public/index.html",
		AdditionalPlugins: []config.PluginSpec{{Name: "banner", Options: map[string]any{"banner": "/* shop */"}}},
	}

	got := Build(opts, twoEntries, prod)
	assert.Equal(t, []string{
		bundle.PluginClean,
		bundle.PluginMinify,
		bundle.PluginDefine,
		bundle.PluginExtractCSS,
		bundle.PluginIgnoreLocales,
		"banner",
		bundle.PluginHTML,
		bundle.PluginHTML,
	}, pluginNames(got))

	assert.Equal(t, []string{filepath.Join(prod.BaseFolder, "dist")}, got[0].Options.Strings("paths"))
	assert.Equal(t, `"production"`, got[2].Options.String("process.env.NODE_ENV"))
	assert.Equal(t, "css/[name].[hash].css", got[3].Options.String("filename"))
	_, isPattern := got[4].Options["contextRegExp"].(*tree.Pattern)
	assert.True(t, isPattern)
	assert.Equal(t, "/* shop */", got[5].Options.String("banner"))

	about := got[6].Options
	assert.Equal(t, "about.html", about.String("filename"))
	assert.Equal(t, []string{"about"}, about.Strings("chunks"))
	assert.True(t, about.Bool("inject"))
	assert.Equal(t, filepath.Join(prod.BaseFolder, "public/index.html"), about.String("template"))
	assert.True(t, about.Map("minify").Bool("collapseWhitespace"))
	assert.Equal(t, "home.html", got[7].Options.String("filename"))
}

func TestBuildDevelopment(t *testing.T) {
	_, dev := contexts(t)
	opts := &config.Options{HTMLPath: "public/index.html", Chunks: []string{"vendor"}}

	got := Build(opts, entry.Map{"home": "/p/src/home.js"}, dev)
	assert.Equal(t, []string{bundle.PluginExtractCSS, bundle.PluginHTML}, pluginNames(got))
	assert.Equal(t, "css/[name].css", got[0].Options.String("filename"))

	html := got[1].Options
	assert.Equal(t, []string{"vendor", "home"}, html.Strings("chunks"))
	assert.Nil(t, html.Map("minify"))
	assert.Equal(t, []string{"vendor"}, opts.Chunks)
}

func TestBuildIgnoreUglifyAndNoTemplate(t *testing.T) {
	prod, _ := contexts(t)
	opts := &config.Options{IgnoreUglify: true}

	got := Build(opts, twoEntries, prod)
	assert.Equal(t, []string{bundle.PluginExtractCSS}, pluginNames(got))
}

func TestMomentDetectedFromPackageJSON(t *testing.T) {
	prod, _ := contexts(t)
	require.NoError(t, os.WriteFile(filepath.Join(prod.BaseFolder, "package.json"),
		[]byte(`{"dependencies": {"moment": "^2.22.0"}}`), 0o644))

	got := Build(&config.Options{}, twoEntries, prod)
	assert.Contains(t, pluginNames(got), bundle.PluginIgnoreLocales)
}

func TestCSSFilename(t *testing.T) {
	prod, dev := contexts(t)
	assert.Equal(t, "css/[name].[hash].css", CSSFilename(&config.Options{}, prod))
	assert.Equal(t, "css/[name].css", CSSFilename(&config.Options{}, dev))
	assert.Equal(t, "css/[name].css", CSSFilename(&config.Options{IgnoreNameHash: true}, prod))
}
