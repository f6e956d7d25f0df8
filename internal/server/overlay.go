package server

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	rerrors "github.com/remixure/remixure/internal/errors"
)

const overlayStyle = `body{margin:0;background:#1e1e1e;color:#e8e8e8;font-family:Menlo,Consolas,monospace}
header{padding:16px 24px;background:#b00020;color:#fff;font-size:16px}
section{padding:16px 24px;border-bottom:1px solid #333}
h2{margin:0 0 8px;font-size:13px;color:#ff8a80}
pre{margin:0;white-space:pre-wrap;font-size:13px;line-height:1.5}`

// errorOverlay renders the diagnostics of the failed compilation in place of
// the application page. The live reload script stays in the page so the
// browser reloads once the errors are fixed.
func errorOverlay(errs []rerrors.BuildError) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Compile with errors!</title><style>`+overlayStyle+`</style></head><body>`); err != nil {
			return err
		}
		header := fmt.Sprintf("Failed to compile: %d error(s)", len(errs))
		if _, err := io.WriteString(w, "<header>"+templ.EscapeString(header)+"</header>"); err != nil {
			return err
		}
		for _, e := range errs {
			title := e.Target
			if e.File != "" {
				title = fmt.Sprintf("%s %s:%d:%d", e.Target, e.File, e.Line, e.Column)
			}
			if _, err := fmt.Fprintf(w, "<section><h2>%s</h2><pre>%s</pre></section>",
				templ.EscapeString(title), templ.EscapeString(e.Message)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, liveReloadScript+"</body></html>")
		return err
	})
}
