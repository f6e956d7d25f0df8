package server

import (
	"bytes"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	rerrors "github.com/remixure/remixure/internal/errors"
)

// liveReloadScript reloads the page whenever a compilation finishes.
const liveReloadScript = `<script>(function(){var p=location.protocol==="https:"?"wss://":"ws://";` +
	`var ws=new WebSocket(p+location.host+"` + wsPath + `");` +
	`ws.onmessage=function(){location.reload()};})();</script>`

// static serves compiled output below the public path, then files of the
// content base. Unknown extension-less HTML navigations fall back to the
// default page.
type static struct {
	output     http.FileSystem
	content    http.FileSystem
	publicPath string
	fallback   []string
	errors     *rerrors.ErrorCollector
}

func (st *static) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)

	if wantsHTML(r) && st.errors.HasErrors() && (path.Ext(name) == "" || path.Ext(name) == ".html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusInternalServerError)
		_ = errorOverlay(st.errors.GetErrors()).Render(r.Context(), w)
		return
	}

	if f, info, ok := st.find(name); ok {
		defer f.Close()
		serveFile(w, r, f, info)
		return
	}

	if historyFallback(r) {
		for _, candidate := range st.fallback {
			if f, info, ok := st.openOutput(candidate); ok {
				defer f.Close()
				serveFile(w, r, f, info)
				return
			}
		}
	}

	http.NotFound(w, r)
}

func (st *static) find(name string) (http.File, fs.FileInfo, bool) {
	if name+"/" == st.publicPath {
		name += "/"
	}
	if rel, ok := strings.CutPrefix(name, st.publicPath); ok {
		if f, info, ok := st.openOutput(rel); ok {
			return f, info, true
		}
	}
	if st.content != nil {
		return openFile(st.content, name)
	}
	return nil, nil, false
}

func (st *static) openOutput(rel string) (http.File, fs.FileInfo, bool) {
	return openFile(st.output, "/"+strings.TrimPrefix(rel, "/"))
}

// openFile opens name in fsys; directories resolve to their index.html.
func openFile(fsys http.FileSystem, name string) (http.File, fs.FileInfo, bool) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, nil, false
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, false
	}
	if info.IsDir() {
		f.Close()
		return openFile(fsys, path.Join(name, "index.html"))
	}
	return f, info, true
}

func serveFile(w http.ResponseWriter, r *http.Request, f http.File, info fs.FileInfo) {
	if path.Ext(info.Name()) != ".html" {
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(injectLiveReload(data))
}

// injectLiveReload adds the live reload script before the closing body tag,
// or at the end of documents without one.
func injectLiveReload(page []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if idx < 0 {
		return append(page, liveReloadScript...)
	}
	out := make([]byte, 0, len(page)+len(liveReloadScript))
	out = append(out, page[:idx]...)
	out = append(out, liveReloadScript...)
	return append(out, page[idx:]...)
}

// historyFallback applies to HTML navigations that matched no file, dots in
// the last segment included.
func historyFallback(r *http.Request) bool {
	return wantsHTML(r)
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "*/*")
}
