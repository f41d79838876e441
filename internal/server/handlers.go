package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/inject"
	"github.com/conneroisu/iconsprite/internal/livereload"
	"github.com/conneroisu/iconsprite/internal/version"
)

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Status      string                `json:"status"`
	Mode        string                `json:"mode"`
	Version     string                `json:"version"`
	Icons       int                   `json:"icons"`
	Duplicates  int                   `json:"duplicates"`
	Fingerprint string                `json:"fingerprint"`
	Clients     int                   `json:"clients"`
	Build       build.MetricsSnapshot `json:"build"`
	SuccessRate float64               `json:"successRate"`
	Cache       build.CacheStats      `json:"cache"`
	LiveUpdate  *LiveUpdateStatus     `json:"liveUpdate,omitempty"`
	Timestamp   int64                 `json:"timestamp"`
}

// LiveUpdateStatus reports the live-update channel.
type LiveUpdateStatus struct {
	State string `json:"state"`
	livereload.Stats
}

func resolvePagesDir(projectRoot, dir string) string {
	if filepath.IsAbs(dir) || projectRoot == "" {
		return filepath.Clean(dir)
	}
	return filepath.Join(projectRoot, dir)
}

func isPage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// handlePage serves pages with the sprite injected and other files as is.
func (s *PreviewServer) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Clean on a rooted path never climbs above the pages directory.
	rel := path.Clean("/" + r.URL.Path)
	target := filepath.Join(s.pagesDir, filepath.FromSlash(rel))

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, "index.html")
		rel = path.Join(rel, "index.html")
		info, err = os.Stat(target)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.Warn(r.Context(), err, "Failed to stat page", "path", target)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if !isPage(target) {
		http.ServeFile(w, r, target)
		return
	}

	markup, err := os.ReadFile(target)
	if err != nil {
		s.logger.Warn(r.Context(), err, "Failed to read page", "path", target)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	html, err := s.plugin.TransformHTML(r.Context(), string(markup), strings.TrimPrefix(rel, "/"))
	if err != nil {
		s.logger.Error(r.Context(), err, "Failed to inject sprite", "path", target)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(html))
}

// handleStatus reports build metrics, cache statistics, and live-update
// activity.
func (s *PreviewServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.plugin.Session()
	if err != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	sprite := session.Current()
	metrics := session.Metrics()

	response := StatusResponse{
		Status:      buildStatus(metrics),
		Mode:        string(s.plugin.Mode()),
		Version:     version.GetShortVersion(),
		Icons:       sprite.Count(),
		Duplicates:  len(sprite.Duplicates),
		Fingerprint: session.Fingerprint(),
		Clients:     s.hub.ClientCount(),
		Build:       metrics,
		SuccessRate: session.SuccessRate(),
		Cache:       session.CacheStats(),
		Timestamp:   time.Now().Unix(),
	}
	if channel := s.plugin.Channel(); channel != nil {
		response.LiveUpdate = &LiveUpdateStatus{State: channel.State().String(), Stats: channel.Stats()}
	}

	writeJSON(w, response)
}

// buildStatus summarizes the last build. A failure that kept the previous
// sprite is "degraded"; one with nothing to serve, or one that cannot be
// retried, is "error".
func buildStatus(metrics build.MetricsSnapshot) string {
	switch {
	case metrics.LastError == "":
		return "healthy"
	case !metrics.LastErrorRecoverable || metrics.SuccessfulBuilds == 0:
		return "error"
	default:
		return "degraded"
	}
}

// handleSprite returns the current sprite as a standalone document for
// debugging.
func (s *PreviewServer) handleSprite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session, err := s.plugin.Session()
	if err != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(session.Current().Markup()))
}

// handleGallery renders every symbol of the current sprite on one page
// that follows live updates.
func (s *PreviewServer) handleGallery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != GalleryPath {
		http.NotFound(w, r)
		return
	}
	session, err := s.plugin.Session()
	if err != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	gallery := inject.GalleryComponent(session.Current(), inject.ClientConfig{Path: WebSocketPath})
	if err := gallery.Render(r.Context(), &buf); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render icon gallery")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(buf.Bytes())
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"shutdown":   s.hub.IsShutdown(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
