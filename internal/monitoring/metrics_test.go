package monitoring

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remixure/remixure/internal/bundle"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveBuild(t *testing.T) {
	m := NewMetrics()

	m.ObserveBuild(&bundle.Stats{
		Language: "en",
		Duration: 120 * time.Millisecond,
		Warnings: []string{"w"},
		Assets: []bundle.Asset{
			{Name: "js/home.min.js", Size: 1000, Emitted: true},
			{Name: "css/home.css", Size: 500},
		},
	}, false)
	m.ObserveBuild(&bundle.Stats{Language: "zh-CN", Errors: []string{"boom"}}, false)
	m.ObserveBuild(&bundle.Stats{Language: "en"}, true)

	body := scrape(t, m)
	assert.Contains(t, body, `remixure_builds_total{language="en",result="success"} 1`)
	assert.Contains(t, body, `remixure_builds_total{language="en",result="failure"} 1`)
	assert.Contains(t, body, `remixure_builds_total{language="zh-CN",result="failure"} 1`)
	assert.Contains(t, body, `remixure_assets_emitted_total{language="en"} 1`)
	assert.Contains(t, body, `remixure_build_warnings_total{language="en"} 1`)
	assert.Contains(t, body, `remixure_build_duration_seconds_count{language="en"} 2`)
	// The last en build had no assets.
	assert.Contains(t, body, `remixure_asset_bytes{language="en"} 0`)
}

func TestDevServerMetrics(t *testing.T) {
	m := NewMetrics()

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	for _, p := range []string{"/", "/index.html", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	m.LiveClientConnected(true)
	m.LiveClientConnected(true)
	m.LiveClientConnected(false)
	m.Reload()
	m.FileWatcherEvent("modify")

	body := scrape(t, m)
	assert.Contains(t, body, `remixure_http_requests_total{method="GET",status="2xx"} 2`)
	assert.Contains(t, body, `remixure_http_requests_total{method="GET",status="4xx"} 1`)
	assert.Contains(t, body, `remixure_live_reload_clients 1`)
	assert.Contains(t, body, `remixure_reloads_total 1`)
	assert.Contains(t, body, `remixure_watcher_events_total{type="modify"} 1`)
}

func TestWriteToTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveBuild(&bundle.Stats{Language: "default"}, false)

	path := filepath.Join(t.TempDir(), "remixure.prom")
	require.NoError(t, m.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `remixure_builds_total{language="default",result="success"} 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBuild(&bundle.Stats{}, true)
		m.FileWatcherEvent("create")
		m.LiveClientConnected(true)
		m.Reload()
		assert.NoError(t, m.WriteToTextfile("unused"))
	})

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
}
