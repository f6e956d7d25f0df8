// Package server is the development server: it serves the compiled output and
// the source folder, and tells connected browsers to reload after every
// compilation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/remixure/remixure/internal/bundle"
	"github.com/remixure/remixure/internal/config"
	rerrors "github.com/remixure/remixure/internal/errors"
	"github.com/remixure/remixure/internal/logging"
	"github.com/remixure/remixure/internal/monitoring"
	"github.com/remixure/remixure/internal/validation"
)

const (
	routePrefix = "/__remixure"
	wsPath      = routePrefix + "/ws"
	metricsPath = routePrefix + "/metrics"
	healthPath  = routePrefix + "/health"
)

// DisableHostCheckEnv turns the Host header check off when set to "true".
const DisableHostCheckEnv = "DANGEROUSLY_DISABLE_HOST_CHECK"

// Config configures the development server.
type Config struct {
	Host  string
	Port  int
	HTTPS bool
	Cert  string
	Key   string

	// OutputDir holds the compiled target, served below PublicPath.
	OutputDir string
	// ContentBase is served for paths not found in OutputDir.
	ContentBase string
	PublicPath  string
	DefaultApp  string

	OpenBrowser      bool
	DisableHostCheck bool
	AllowedHosts     []string
}

// ConfigFromOptions builds the server configuration of a development run.
func ConfigFromOptions(opts *config.Options, bc config.BuildContext, outputDir string) Config {
	host, port := opts.DevServerAddress()
	cfg := Config{
		Host:             host,
		Port:             port,
		OutputDir:        outputDir,
		ContentBase:      opts.SourceFolder(bc),
		PublicPath:       opts.PublicPath,
		OpenBrowser:      true,
		DisableHostCheck: os.Getenv(DisableHostCheckEnv) == "true",
	}
	if ds := opts.DevServer; ds != nil {
		cfg.HTTPS = ds.HTTPS
		cfg.Cert = projectPath(bc, ds.Cert)
		cfg.Key = projectPath(bc, ds.Key)
		cfg.DefaultApp = ds.DefaultApp
	}
	if cfg.DefaultApp == "" {
		cfg.DefaultApp = config.ReadPackage(bc).DefaultApp
	}
	return cfg
}

func projectPath(bc config.BuildContext, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return bc.Path(p)
}

// Server is the development server.
type Server struct {
	cfg     Config
	logger  logging.Logger
	metrics *monitoring.Metrics
	hub     *Hub
	errors  *rerrors.ErrorCollector

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	openBrowser  func(url string) error
}

// New creates a server. metrics may be nil.
func New(cfg Config, logger logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	logger = logger.WithComponent("server")
	return &Server{
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		hub:         NewHub(logger, metrics),
		errors:      rerrors.NewErrorCollector(),
		openBrowser: openBrowser,
	}
}

// Errors returns the diagnostics of the latest compilation of every target.
func (s *Server) Errors() *rerrors.ErrorCollector {
	return s.errors
}

// Hub returns the live reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.hostCheck)
	r.Use(middleware.Heartbeat(healthPath))

	r.Get(wsPath, s.handleWebSocket)
	r.Handle(metricsPath, s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.metrics.Middleware)
		r.Use(middleware.Compress(5))
		r.Handle("/*", &static{
			output:     http.Dir(s.cfg.OutputDir),
			content:    contentDir(s.cfg.ContentBase),
			publicPath: normalizePublicPath(s.cfg.PublicPath),
			fallback:   fallbackPages(s.cfg.DefaultApp),
			errors:     s.errors,
		})
	})
	return r
}

func contentDir(dir string) http.FileSystem {
	if dir == "" {
		return nil
	}
	return http.Dir(dir)
}

func normalizePublicPath(p string) string {
	if u, err := urlPath(p); err == nil {
		p = u
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// urlPath drops the scheme and host of an absolute public path.
func urlPath(p string) (string, error) {
	if !strings.Contains(p, "://") {
		return p, nil
	}
	_, rest, _ := strings.Cut(p, "://")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i:], nil
	}
	return "/", nil
}

func fallbackPages(defaultApp string) []string {
	var pages []string
	if app := strings.Trim(defaultApp, "/"); app != "" {
		if !strings.HasSuffix(app, ".html") {
			app += ".html"
		}
		pages = append(pages, app)
	}
	return append(pages, "index.html")
}

// URL returns the address browsers are sent to.
func (s *Server) URL() string {
	port := s.cfg.Port
	if addr := s.Addr(); addr != "" {
		if _, p, err := net.SplitHostPort(addr); err == nil {
			port, _ = strconv.Atoi(p)
		}
	}
	return validation.BrowserURL(s.cfg.HTTPS, s.cfg.Host, port, s.cfg.DefaultApp)
}

// Addr returns the listen address, empty until Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens and serves until Shutdown is called or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return rerrors.NewIOError(rerrors.ErrCodeInternalError, fmt.Sprintf("listening on %s", addr), err)
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	go s.hub.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	url := s.URL()
	s.logger.Info(ctx, "Dev server listening", "url", url)
	if s.cfg.OpenBrowser {
		if err := validation.ValidateURL(url); err != nil {
			s.logger.Warn(ctx, err, "Not opening browser")
		} else if err := s.openBrowser(url); err != nil {
			s.logger.Warn(ctx, err, "Failed to open browser")
		}
	}

	if s.cfg.HTTPS {
		err = srv.ServeTLS(ln, s.cfg.Cert, s.cfg.Key)
	} else {
		err = srv.Serve(ln)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return rerrors.NewIOError(rerrors.ErrCodeInternalError, "dev server failed", err)
	}
	return nil
}

// Shutdown closes live reload connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.hub.Close()

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

// Notify records the result of a compilation and tells browsers to reload.
func (s *Server) Notify(stats *bundle.Stats) {
	if stats == nil {
		return
	}
	errs := make([]rerrors.BuildError, 0, len(stats.Errors))
	for _, msg := range stats.Errors {
		errs = append(errs, rerrors.BuildError{
			Target:    targetName(stats.Language),
			Message:   msg,
			Severity:  rerrors.ErrorSeverityError,
			Timestamp: time.Now(),
		})
	}
	s.errors.Replace(targetName(stats.Language), errs)

	msg := UpdateMessage{Type: MessageReload, Language: stats.Language, Hash: stats.Hash}
	if len(errs) > 0 {
		msg.Type = MessageErrors
		msg.Errors = len(errs)
	}
	s.hub.Broadcast(msg)
}

func targetName(language string) string {
	if language == "" {
		return "default"
	}
	return language
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !checkOrigin(r, s.cfg.Port, s.allowedHosts()) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	s.hub.ServeHTTP(w, r)
}

func (s *Server) allowedHosts() []string {
	return append([]string{s.cfg.Host}, s.cfg.AllowedHosts...)
}

func (s *Server) hostCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.DisableHostCheck && !validation.HostAllowed(r.Host, s.allowedHosts()...) {
			http.Error(w, "Invalid Host header", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}
