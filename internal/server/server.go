// Package server hosts pages with the icon sprite injected and the
// live-update websocket endpoint for development sessions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/iconsprite/internal/config"
	"github.com/conneroisu/iconsprite/internal/inject"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/plugin"
	"github.com/conneroisu/iconsprite/internal/validation"
	"github.com/conneroisu/iconsprite/internal/websocket"
)

// Endpoint paths served next to the pages.
const (
	WebSocketPath = inject.DefaultWebSocketPath
	StatusPath    = "/__iconsprite/status"
	SpritePath    = "/__iconsprite/sprite.svg"
	HealthPath    = "/__iconsprite/health"
	GalleryPath   = "/__iconsprite/"
)

const shutdownTimeout = 5 * time.Second

// PreviewServer serves pages from the pages directory with the sprite
// injected and pushes sprite updates to connected browsers.
type PreviewServer struct {
	config   *config.Config
	plugin   *plugin.Plugin
	logger   logging.Logger
	hub      *websocket.Hub
	origins  *originPolicy
	pagesDir string

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// New creates a preview server for a resolved plugin.
func New(cfg *config.Config, p *plugin.Plugin, logger logging.Logger) *PreviewServer {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	origins := newOriginPolicy(cfg.Server.AllowedOrigins)
	origins.addAddr(cfg.Address())

	return &PreviewServer{
		config:   cfg,
		plugin:   p,
		logger:   logger,
		hub:      websocket.NewHub(origins, logger),
		origins:  origins,
		pagesDir: resolvePagesDir(p.ProjectRoot(), cfg.Pages.Dir),
	}
}

// Hub returns the live-update hub. It implements livereload.Broadcaster.
func (s *PreviewServer) Hub() *websocket.Hub {
	return s.hub
}

// Handler returns the HTTP handler with every route and middleware.
func (s *PreviewServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.hub.HandleWebSocket)
	mux.HandleFunc(StatusPath, s.handleStatus)
	mux.HandleFunc(SpritePath, s.handleSprite)
	mux.HandleFunc(HealthPath, s.handleHealth)
	mux.HandleFunc(GalleryPath, s.handleGallery)
	mux.HandleFunc("/", s.handlePage)
	return s.addMiddleware(mux)
}

// Start listens on the configured address and serves until ctx is done.
func (s *PreviewServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or Shutdown is called.
func (s *PreviewServer) Serve(ctx context.Context, ln net.Listener) error {
	addr := ln.Addr().String()
	s.origins.addAddr(addr)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	url := "http://" + browserAddr(addr)
	s.logger.Info(ctx, "Serving pages", "url", url, "pages", s.pagesDir, "gallery", url+GalleryPath)
	if s.config.Server.Open {
		go s.openBrowser(ctx, url)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Server shutdown incomplete")
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes websocket clients and stops the HTTP server. It is safe
// to call more than once.
func (s *PreviewServer) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		if err := s.hub.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "WebSocket hub shutdown incomplete")
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}

func (s *PreviewServer) openBrowser(ctx context.Context, url string) {
	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Browser open failed due to invalid URL")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser")
	}
}

func (s *PreviewServer) addMiddleware(handler http.Handler) http.Handler {
	secured := SecurityHeaders(handler)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.origins.IsAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		secured.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// originPolicy accepts websocket origins for the addresses the server
// listens on plus any configured extra origins.
type originPolicy struct {
	mu    sync.RWMutex
	hosts websocket.AllowedHosts
}

func newOriginPolicy(extra []string) *originPolicy {
	return &originPolicy{hosts: append(websocket.AllowedHosts(nil), extra...)}
}

// addAddr allows addr and its loopback aliases.
func (o *originPolicy) addAddr(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.hosts = append(o.hosts, net.JoinHostPort(host, port))
	if isLoopbackOrUnspecified(host) {
		for _, alias := range []string{"localhost", "127.0.0.1", "::1"} {
			o.hosts = append(o.hosts, net.JoinHostPort(alias, port))
		}
	}
}

// IsAllowedOrigin implements websocket.OriginValidator.
func (o *originPolicy) IsAllowedOrigin(origin string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.hosts.IsAllowedOrigin(origin)
}

func isLoopbackOrUnspecified(host string) bool {
	if host == "localhost" || host == "" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// browserAddr replaces an unspecified bind address with localhost.
func browserAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
