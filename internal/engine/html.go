package engine

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/tree"
)

var jsTypes = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)

// page is one HTML document generated from the template.
type page struct {
	filename string
	template string
	chunks   []string
	inject   bool
	minify   tree.Mapping
}

func pages(cfg *bundle.Config) []page {
	var out []page
	for _, p := range cfg.PluginsNamed(bundle.PluginHTML) {
		out = append(out, page{
			filename: p.Options.String("filename"),
			template: p.Options.String("template"),
			chunks:   p.Options.Strings("chunks"),
			inject:   p.Options.Bool("inject"),
			minify:   p.Options.Map("minify"),
		})
	}
	return out
}

// interpolations collects the %key% replacements of every interpolate-html
// plugin.
func interpolations(cfg *bundle.Config) map[string]string {
	vars := map[string]string{}
	for _, p := range cfg.PluginsNamed(bundle.PluginInterpolateHTML) {
		for _, k := range p.Options.Keys() {
			vars[k] = p.Options.String(k)
		}
	}
	return vars
}

// Interpolate replaces every %key% in src with its value.
func Interpolate(src []byte, vars map[string]string) []byte {
	if len(vars) == 0 {
		return src
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "%"+k+"%", v)
	}
	return []byte(strings.NewReplacer(pairs...).Replace(string(src)))
}

// renderPage injects stylesheet links into head and script tags at the end
// of body, in the order given.
func renderPage(src []byte, styles, scripts []string, module bool) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}

	if head := findElement(doc, atom.Head); head != nil {
		for _, href := range styles {
			head.AppendChild(&html.Node{
				Type:     html.ElementNode,
				Data:     "link",
				DataAtom: atom.Link,
				Attr:     []html.Attribute{{Key: "href", Val: href}, {Key: "rel", Val: "stylesheet"}},
			})
		}
	}

	scriptType := "text/javascript"
	if module {
		scriptType = "module"
	}
	if body := findElement(doc, atom.Body); body != nil {
		for _, src := range scripts {
			body.AppendChild(&html.Node{
				Type:     html.ElementNode,
				Data:     "script",
				DataAtom: atom.Script,
				Attr:     []html.Attribute{{Key: "type", Val: scriptType}, {Key: "src", Val: src}},
			})
		}
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// minifyHTML applies the html plugin's minify options.
func minifyHTML(data []byte, options tree.Mapping) ([]byte, error) {
	m := minify.New()
	m.Add("text/html", &mhtml.Minifier{
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepComments:        !options.Bool("removeComments"),
		KeepWhitespace:      !options.Bool("collapseWhitespace"),
		KeepDefaultAttrVals: !options.Bool("removeRedundantAttributes"),
	})
	if options.Bool("minifyCSS") {
		m.AddFunc("text/css", css.Minify)
	}
	if options.Bool("minifyJS") {
		m.AddFuncRegexp(jsTypes, js.Minify)
	}
	return m.Bytes("text/html", data)
}
