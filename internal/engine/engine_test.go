package engine

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixure/remixure/internal/assemble"
	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	"github.com/remixure/remixure/internal/entry"
	"github.com/remixure/remixure/internal/matrix"
)

const indexHTML = `<!DOCTYPE html>
<html>
  <head><title>%language%</title></head>
  <body><div id="root"></div></body>
</html>
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	base := t.TempDir()
	for name, content := range files {
		path := filepath.Join(base, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return base
}

func baseOptions() *config.Options {
	return &config.Options{
		SrcFolder:        "src",
		PublicPath:       "/",
		HTMLPath:         "public/index.html",
		CleanBeforeBuild: true,
		Less:             &config.LessOptions{EnableCSSModule: true},
	}
}

func targets(t *testing.T, base, env string, opts *config.Options) []matrix.Target {
	t.Helper()
	bc := config.BuildContext{Env: env, BaseFolder: base}
	entries, err := entry.Discover(opts.SourceFolder(bc), opts)
	require.NoError(t, err)
	return matrix.Expand(assemble.Config(opts, entries, bc), opts, bc)
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func assetNames(stats *bundle.Stats) []string {
	names := make([]string, len(stats.Assets))
	for i, a := range stats.Assets {
		names[i] = a.Name
	}
	return names
}

func findAsset(stats *bundle.Stats, name string) (bundle.Asset, bool) {
	for _, a := range stats.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return bundle.Asset{}, false
}

func TestCompileDiscoveredEntries(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js":       "import './home.css';\nconsole.log('home page');\n",
		"src/about.js":      "console.log('about page');\n",
		"src/home.css":      ".title { color: red; }\n",
		"public/index.html": indexHTML,
	})
	ts := targets(t, base, config.DevEnv, baseOptions())
	require.Len(t, ts, 1)
	out := ts[0].OutputPath()

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	require.Empty(t, stats.Errors)

	names := assetNames(stats)
	for _, name := range []string{
		"js/home.min.js",
		"js/about.min.js",
		"css/home.css",
		"home.html",
		"about.html",
	} {
		assert.Contains(t, names, name)
	}
	assert.NotEmpty(t, stats.Hash)

	assert.Contains(t, readOutput(t, out, "js/home.min.js"), "home page")
	assert.Contains(t, readOutput(t, out, "js/about.min.js"), "about page")
	assert.Contains(t, readOutput(t, out, "css/home.css"), "color: red")

	home, ok := findAsset(stats, "js/home.min.js")
	require.True(t, ok)
	assert.Equal(t, []string{"home"}, home.ChunkNames)
	assert.Equal(t, []int{1}, home.Chunks)
	assert.True(t, home.Emitted)
	assert.False(t, home.Oversize)

	css, ok := findAsset(stats, "css/home.css")
	require.True(t, ok)
	assert.Equal(t, home.Chunks, css.Chunks)

	page := readOutput(t, out, "home.html")
	assert.Contains(t, page, `src="/js/home.min.js"`)
	assert.Contains(t, page, `href="/css/home.css"`)
	assert.NotContains(t, page, "about.min.js")
}

func TestCompileProductionNamesAndMinifiesPages(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js":       "import './home.css';\nexport const greeting = 'hello production';\nconsole.log(greeting);\n",
		"src/home.css":      ".title { color: blue; }\n",
		"public/index.html": indexHTML,
	})
	opts := baseOptions()
	opts.I18n = nil
	ts := targets(t, base, "prod", opts)
	require.Len(t, ts, 1)

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	require.Empty(t, stats.Errors)

	jsName := regexp.MustCompile(`^js/home\.[A-Za-z0-9]+\.min\.js$`)
	cssName := regexp.MustCompile(`^css/home\.[0-9a-f]{8}\.css$`)
	var sawJS, sawCSS, sawMap bool
	for _, name := range assetNames(stats) {
		sawJS = sawJS || jsName.MatchString(name)
		sawCSS = sawCSS || cssName.MatchString(name)
		sawMap = sawMap || strings.HasSuffix(name, ".map")
	}
	assert.True(t, sawJS, "hashed script in %v", assetNames(stats))
	assert.True(t, sawCSS, "hashed stylesheet in %v", assetNames(stats))
	assert.False(t, sawMap, "no source maps in production")

	page := readOutput(t, ts[0].OutputPath(), "home.html")
	assert.Contains(t, page, "/js/home.")
	assert.NotContains(t, page, "\n  <body>")
}

func TestCompileReportsErrors(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js": "const = ;\n",
	})
	opts := baseOptions()
	opts.HTMLPath = ""
	ts := targets(t, base, "prod", opts)

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	assert.True(t, stats.HasErrors())
	assert.Empty(t, stats.Assets)
}

func TestSessionRebuildSkipsUnchangedFiles(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js": "console.log('watch');\n",
	})
	opts := baseOptions()
	opts.HTMLPath = ""
	ts := targets(t, base, config.DevEnv, opts)

	ctx := context.Background()
	s, err := New(nil).Start(ctx, ts[0])
	require.NoError(t, err)
	defer s.Close()

	first, err := s.Rebuild(ctx)
	require.NoError(t, err)
	require.Empty(t, first.Errors)
	for _, a := range first.Assets {
		assert.True(t, a.Emitted, a.Name)
	}

	second, err := s.Rebuild(ctx)
	require.NoError(t, err)
	require.Empty(t, second.Errors)
	for _, a := range second.Assets {
		assert.False(t, a.Emitted, a.Name)
	}
	assert.Equal(t, first.Hash, second.Hash)

	require.NoError(t, os.WriteFile(filepath.Join(base, "src", "home.js"), []byte("console.log('changed');\n"), 0o644))
	third, err := s.Rebuild(ctx)
	require.NoError(t, err)
	js, ok := findAsset(third, "js/home.min.js")
	require.True(t, ok)
	assert.True(t, js.Emitted)
	assert.NotEqual(t, first.Hash, third.Hash)
}

func TestCompileURLAssets(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js":   "import big from './big.png';\nimport small from './small.png';\nconsole.log(big, small);\n",
		"src/big.png":   strings.Repeat("x", 20000),
		"src/small.png": "tiny",
	})
	opts := baseOptions()
	opts.HTMLPath = ""
	ts := targets(t, base, config.DevEnv, opts)

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	require.Empty(t, stats.Errors)

	assert.Contains(t, assetNames(stats), "static/media/big.png")
	js := readOutput(t, ts[0].OutputPath(), "js/home.min.js")
	assert.Contains(t, js, "/static/media/big.png")
	assert.Contains(t, js, "data:image/png")
}

// fakeLessc stands in for lessc: it drops variable declarations and
// substitutes @color with red.
const fakeLessc = `#!/bin/sh
for last; do :; done
sed -e '/^@color:/d' -e 's/@color/red/g' "$last"
`

func TestCompileThirdPartyLess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the lessc stand-in is a shell script")
	}
	base := writeProject(t, map[string]string{
		"src/home.js":                      "import '../node_modules/some-lib/theme.less';\nconsole.log('home');\n",
		"node_modules/some-lib/theme.less": "@color: red;\n.lib-button { color: @color; }\n",
		"node_modules/.bin/lessc":          fakeLessc,
	})
	require.NoError(t, os.Chmod(filepath.Join(base, "node_modules", ".bin", "lessc"), 0o755))
	opts := baseOptions()
	opts.HTMLPath = ""
	ts := targets(t, base, config.DevEnv, opts)

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	require.Empty(t, stats.Errors)

	css := readOutput(t, ts[0].OutputPath(), "css/home.css")
	assert.Contains(t, css, ".lib-button")
	assert.Contains(t, css, "color: red")
	assert.NotContains(t, css, "@color")
}

func TestCompileLanguageTarget(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js":       "import strings from './lang.json';\nconsole.log(strings.hello);\n",
		"src/lang.json":     `{"hello": {"en": "Hello there", "zh-CN": "Ni hao"}}`,
		"public/index.html": indexHTML,
	})
	opts := baseOptions()
	opts.I18n = &config.I18nOptions{Languages: []string{"en", "zh-CN"}, DefaultLanguage: "en"}
	ts := targets(t, base, config.DevEnv, opts)
	require.Len(t, ts, 1)
	assert.Equal(t, filepath.Join(base, "dist", "en"), ts[0].OutputPath())

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	require.Empty(t, stats.Errors)

	js := readOutput(t, ts[0].OutputPath(), "js/home.min.js")
	assert.Contains(t, js, "Hello there")
	assert.NotContains(t, js, "Ni hao")
	assert.Contains(t, readOutput(t, ts[0].OutputPath(), "home.html"), "<title>en</title>")
}

func TestCompileBuiltinAlias(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js":             "import name from 'components';\nconsole.log(name);\n",
		"src/components/index.js": "export default 'aliased component';\n",
	})
	opts := baseOptions()
	opts.HTMLPath = ""
	ts := targets(t, base, config.DevEnv, opts)

	stats, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	require.Empty(t, stats.Errors)
	assert.Contains(t, readOutput(t, ts[0].OutputPath(), "js/home.min.js"), "aliased component")
}

func TestCompileCleansOutputFolder(t *testing.T) {
	base := writeProject(t, map[string]string{
		"src/home.js":    "console.log('clean');\n",
		"dist/stale.txt": "old",
	})
	opts := baseOptions()
	opts.HTMLPath = ""
	ts := targets(t, base, config.DevEnv, opts)

	_, err := New(nil).Compile(context.Background(), ts[0])
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(base, "dist", "stale.txt"))
	assert.True(t, os.IsNotExist(err))
}
