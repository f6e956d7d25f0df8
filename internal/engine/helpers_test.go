package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/tree"
)

func TestExpandName(t *testing.T) {
	data := []byte("body{}")
	hash := contentHash(data)
	require.Len(t, hash, 8)

	tests := []struct {
		template string
		want     string
	}{
		{"css/[name].css", "css/home.css"},
		{"css/[name].[hash].css", "css/home." + hash + ".css"},
		{"css/[id].[contenthash:4].css", "css/3." + hash[:4] + ".css"},
		{"static/media/[name].[hash:8].[ext]", "static/media/home." + hash + ".css"},
		{"[name].[chunkhash:20].[ext]", "home." + hash + ".css"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.want, expandName(tt.template, "home", "css", "3", data))
		})
	}
}

func TestEsbuildNames(t *testing.T) {
	assert.Equal(t, "js/[name].[hash].min", esbuildNames("js/[name].[chunkhash:8].min.js"))
	assert.Equal(t, "js/[name].chunk.min", esbuildNames("js/[name].chunk.min.js"))
}

func TestLessArgs(t *testing.T) {
	options := tree.Mapping{
		"javascriptEnabled": tree.Bool(true),
		"strictMath":        tree.Bool(true),
		"paths":             tree.Strings("a", "b"),
		"modifyVars": tree.Mapping{
			"@primary-color": tree.String("#1DA57A"),
			"border-radius":  tree.Int(2),
		},
	}

	got := lessArgs("theme.less", options)

	assert.Equal(t, []string{
		"--js",
		"--strict-math=on",
		"--include-path=a" + string(os.PathListSeparator) + "b",
		"--modify-var=border-radius=2",
		"--modify-var=primary-color=#1DA57A",
		"theme.less",
	}, got)
	assert.Equal(t, []string{"plain.less"}, lessArgs("plain.less", nil))
}

func TestSelectLanguage(t *testing.T) {
	src := []byte(`{
		"title": {"en": "Welcome", "zh-CN": "欢迎"},
		"count": 3,
		"nested": {"de": "Hallo"}
	}`)

	out, err := SelectLanguage(src, "en")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "Welcome", got["title"])
	assert.Equal(t, float64(3), got["count"])
	assert.Equal(t, map[string]any{"de": "Hallo"}, got["nested"])

	_, err = SelectLanguage([]byte(`[1, 2]`), "en")
	assert.Error(t, err)
}

func TestApplyAlias(t *testing.T) {
	alias := map[string]string{
		"components":   "/src/components/index.js",
		"assets":       "/src/assets",
		"assets/fonts": "/shared/fonts",
		"react$":       "/vendor/react.js",
	}

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"components", "/src/components/index.js", true},
		{"assets/logo.png", "/src/assets/logo.png", true},
		{"assets/fonts/a.ttf", "/shared/fonts/a.ttf", true},
		{"react", "/vendor/react.js", true},
		{"react/jsx-runtime", "", false},
		{"assetsx", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := applyAlias(alias, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtensionsAndLoaders(t *testing.T) {
	assert.Equal(t, []string{".bmp", ".png"}, extensionsOf(`\.(bmp|png)$`))
	assert.Nil(t, extensionsOf(`lang\.json$`))

	rules := []bundle.Rule{{
		Name: "image",
		Test: tree.MustPattern(`\.(gif|png)$`),
		Use:  []bundle.Loader{{Name: bundle.LoaderURL}},
	}}
	m := loaders(rules)
	assert.Equal(t, api.LoaderDataURL, m[".png"])
	assert.Equal(t, api.LoaderDataURL, m[".gif"])
	assert.Equal(t, api.LoaderJSX, m[".js"])
}

func TestKnownTarget(t *testing.T) {
	assert.True(t, KnownTarget("es2015"))
	assert.True(t, KnownTarget("ES6"))
	assert.True(t, KnownTarget("esnext"))
	assert.False(t, KnownTarget("es3"))
}

func TestBanner(t *testing.T) {
	assert.Nil(t, banner(nil))
	assert.Equal(t, "/*! (c) acme */", banner(tree.Mapping{"banner": tree.String("(c) acme")})["js"])
	raw := banner(tree.Mapping{"banner": tree.String("// hi"), "raw": tree.Bool(true)})
	assert.Equal(t, "// hi", raw["css"])
}

func TestCleanStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(out, 0o755))

	cfg := func(path string) *bundle.Config {
		return &bundle.Config{
			Context: root,
			Output:  bundle.Output{Path: path},
			Plugins: []bundle.Plugin{{
				Name:    bundle.PluginClean,
				Options: tree.Mapping{"root": tree.String(root)},
			}},
		}
	}

	assert.Error(t, clean(cfg(root)))
	assert.Error(t, clean(cfg(filepath.Dir(root))))
	require.NoError(t, clean(cfg(out)))
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, clean(&bundle.Config{Output: bundle.Output{Path: root}}))
}

func TestInterpolate(t *testing.T) {
	src := []byte(`<title>%language% %missing%</title>`)
	assert.Equal(t, `<title>en %missing%</title>`, string(Interpolate(src, map[string]string{"language": "en"})))
	assert.Equal(t, src, Interpolate(src, nil))
}

func TestRenderPage(t *testing.T) {
	src := []byte(`<!DOCTYPE html><html><head><title>x</title></head><body><div id="root"></div></body></html>`)

	out, err := renderPage(src, []string{"/css/home.css"}, []string{"/js/home.min.js"}, false)
	require.NoError(t, err)
	page := string(out)
	assert.Contains(t, page, `<link href="/css/home.css" rel="stylesheet"/></head>`)
	assert.Contains(t, page, `<script type="text/javascript" src="/js/home.min.js"></script></body>`)

	out, err = renderPage(src, nil, []string{"/js/home.min.js"}, true)
	require.NoError(t, err)
	assert.Contains(t, string(out), `type="module"`)
}

func TestMinifyHTML(t *testing.T) {
	src := []byte("<!DOCTYPE html>\n<html>\n  <head>\n    <!-- note -->\n    <style> body { color : red ; } </style>\n  </head>\n  <body>\n    <p>hi</p>\n  </body>\n</html>\n")

	out, err := minifyHTML(src, tree.Mapping{
		"removeComments":     tree.Bool(true),
		"collapseWhitespace": tree.Bool(true),
		"minifyCSS":          tree.Bool(true),
	})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "note")
	assert.NotContains(t, string(out), "\n  ")
	assert.Contains(t, string(out), "color:red")
}

func TestChunkOwners(t *testing.T) {
	var meta metafile
	require.NoError(t, json.Unmarshal([]byte(`{"outputs": {
		"dist/js/home.min.js": {"entryPoint": "src/home.js", "cssBundle": "dist/js/home.min.css"},
		"dist/js/home.min.css": {},
		"dist/js/about.min.js": {"entryPoint": "src/about.js"},
		"dist/js/chunk-B.js": {},
		"dist/js/chunk-A.js": {}
	}}`), &meta))

	owners := chunkOwners(meta, map[string]string{"src/home.js": "home", "src/about.js": "about"})

	assert.Equal(t, chunkRef{id: 0, name: "about"}, owners["dist/js/about.min.js"])
	assert.Equal(t, chunkRef{id: 1, name: "home"}, owners["dist/js/home.min.js"])
	assert.Equal(t, chunkRef{id: 1, name: "home"}, owners["dist/js/home.min.css"])
	assert.Equal(t, chunkRef{id: 2}, owners["dist/js/chunk-A.js"])
	assert.Equal(t, chunkRef{id: 3}, owners["dist/js/chunk-B.js"])
}

func TestRelocateCSS(t *testing.T) {
	files := []outFile{
		{name: "js/home.min.css", contents: []byte("a{}\n/*# sourceMappingURL=home.min.css.map */"), chunk: 1, chunkName: "home"},
		{name: "js/home.min.css.map", contents: []byte("{}"), chunk: 1, chunkName: "home"},
		{name: "js/chunk-X.css", contents: []byte("b{}"), chunk: 2},
		{name: "js/home.min.js", contents: []byte("1"), chunk: 1, chunkName: "home"},
	}

	got := relocateCSS(files, tree.Mapping{
		"filename":      tree.String("css/[name].css"),
		"chunkFilename": tree.String("css/[id].css"),
	})

	assert.Equal(t, "css/home.css", got[0].name)
	assert.Contains(t, string(got[0].contents), "sourceMappingURL=home.css.map")
	assert.Equal(t, "css/home.css.map", got[1].name)
	assert.Equal(t, "css/2.css", got[2].name)
	assert.Equal(t, "js/home.min.js", got[3].name)
}

func TestWriteFilesReportsEmission(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, bundle.OversizeLimit+1)
	files := []outFile{
		{name: "js/a.js", contents: []byte("a"), chunk: 0, chunkName: "a"},
		{name: "static/big.bin", contents: big, chunk: -1},
	}

	assets, hash, err := writeFiles(dir, files)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.True(t, assets[0].Emitted)
	assert.Equal(t, []int{0}, assets[0].Chunks)
	assert.Equal(t, []string{"a"}, assets[0].ChunkNames)
	assert.True(t, assets[1].Oversize)
	assert.Nil(t, assets[1].Chunks)

	again, hash2, err := writeFiles(dir, files)
	require.NoError(t, err)
	assert.False(t, again[0].Emitted)
	assert.False(t, again[1].Emitted)
	assert.Equal(t, hash, hash2)

	data, err := os.ReadFile(filepath.Join(dir, "js", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
}

func TestCopyFiles(t *testing.T) {
	work := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(work, "public", "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(work, "public", "img", "a.png"), []byte("png"), 0o644))

	files, err := copyFiles(work, tree.Mapping{"from": tree.String("public"), "to": tree.String("static")})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "static/img/a.png", files[0].name)
	assert.Equal(t, -1, files[0].chunk)

	_, err = copyFiles(work, tree.Mapping{"from": tree.String("missing")})
	assert.Error(t, err)
}
