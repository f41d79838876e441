package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/conneroisu/iconsprite/internal/config"
	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func icon(d string) string {
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24"><path d="` + d + `"/></svg>`
}

func page(body string) string {
	return "<!DOCTYPE html><html><head><title>t</title></head><body>" + body + "</body></html>"
}

// newSite writes icons home, search, user plus a duplicate home and a
// pages directory with two pages and an asset.
func newSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	icons := filepath.Join(root, "src", "icons")
	writeFile(t, filepath.Join(icons, "home.svg"), icon("M1"))
	writeFile(t, filepath.Join(icons, "search.svg"), icon("M2"))
	writeFile(t, filepath.Join(icons, "user.svg"), icon("M3"))
	writeFile(t, filepath.Join(icons, "zz", "home.svg"), icon("M4"))

	pages := filepath.Join(root, "pages")
	writeFile(t, filepath.Join(pages, "index.html"), page(`<svg><use href="#home"></use></svg>`))
	writeFile(t, filepath.Join(pages, "blog", "post.html"),
		page(`<svg><use xlink:href="#search"></use></svg><svg><use href="#missing"></use></svg>`))
	writeFile(t, filepath.Join(pages, "css", "site.css"), "body{}")
	return root
}

func loadConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBuildServiceWritesSite(t *testing.T) {
	root := newSite(t)
	svc := NewBuildService(loadConfig(t, nil), logging.Nop())

	result, err := svc.Build(context.Background(), BuildOptions{ProjectRoot: root})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, filepath.Join(root, "dist"), result.OutputDir)
	assert.Equal(t, 3, result.IconCount)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "home", result.Duplicates[0].ID)
	assert.Len(t, result.Pages, 2)
	assert.Equal(t, 1, result.Assets)

	index := read(t, filepath.Join(root, "dist", "index.html"))
	assert.Contains(t, index, `<body><svg aria-hidden="true" class="svg-sprite"`)
	assert.Equal(t, 3, strings.Count(index, "<symbol"))
	assert.NotContains(t, index, "<script", "no live-update client in build output")

	post := read(t, filepath.Join(root, "dist", "blog", "post.html"))
	assert.Contains(t, post, `<symbol id="search"`)
	assert.Equal(t, "body{}", read(t, filepath.Join(root, "dist", "css", "site.css")))
}

func TestBuildServicePerPageTreeShaking(t *testing.T) {
	root := newSite(t)
	cfg := loadConfig(t, func(c *config.Config) { c.TreeShaking.Enabled = true })

	result, err := NewBuildService(cfg, nil).Build(context.Background(), BuildOptions{
		ProjectRoot: root,
		Output:      "public",
		Analyze:     true,
	})
	require.NoError(t, err)

	index := read(t, filepath.Join(root, "public", "index.html"))
	assert.Equal(t, 1, strings.Count(index, "<symbol"))
	assert.Contains(t, index, `<symbol id="home"`)

	post := read(t, filepath.Join(root, "public", "blog", "post.html"))
	assert.Equal(t, 1, strings.Count(post, "<symbol"))
	assert.Contains(t, post, `<symbol id="search"`)

	var analysis struct {
		IconCount int          `json:"iconCount"`
		Pages     []PageReport `json:"pages"`
	}
	require.NoError(t, json.Unmarshal([]byte(read(t, filepath.Join(root, "public", AnalysisFile))), &analysis))
	assert.Equal(t, 3, analysis.IconCount)
	require.Len(t, analysis.Pages, 2)
	assert.Equal(t, "blog/post.html", analysis.Pages[0].Path)
	assert.Equal(t, []string{"search"}, analysis.Pages[0].Symbols)
	assert.Equal(t, "index.html", analysis.Pages[1].Path)
	assert.Equal(t, []string{"home"}, analysis.Pages[1].Symbols)

	_ = result
}

func TestBuildServiceCleanAndNestedOutput(t *testing.T) {
	root := newSite(t)
	cfg := loadConfig(t, func(c *config.Config) { c.Pages.OutDir = "pages/out" })
	stale := filepath.Join(root, "pages", "out", "stale.html")
	writeFile(t, stale, "old")

	result, err := NewBuildService(cfg, nil).Build(context.Background(), BuildOptions{ProjectRoot: root, Clean: true})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.Len(t, result.Pages, 2, "output inside the pages directory is not re-read")
	assert.FileExists(t, filepath.Join(root, "pages", "out", "index.html"))
}

func TestBuildServiceRejectsEscapingIconDir(t *testing.T) {
	root := newSite(t)
	cfg := loadConfig(t, func(c *config.Config) { c.Sprite.IconDir = "../../icons" })

	_, err := NewBuildService(cfg, nil).Build(context.Background(), BuildOptions{ProjectRoot: root})
	var traversal *spriteerrors.PathTraversalError
	require.True(t, errors.As(err, &traversal))
	assert.Contains(t, err.Error(), "../../icons")
	assert.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestBuildServiceMissingPagesDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "icons", "home.svg"), icon("M1"))

	result, err := NewBuildService(loadConfig(t, nil), nil).Build(context.Background(), BuildOptions{ProjectRoot: root})
	require.NoError(t, err)
	assert.Equal(t, 1, result.IconCount)
	assert.Empty(t, result.Pages)
}

func TestInspectList(t *testing.T) {
	root := newSite(t)
	svc := NewInspectService(loadConfig(t, func(c *config.Config) { c.Sprite.Prefix = "i" }), nil)

	report, err := svc.List(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "icons"), report.IconDir)
	require.Len(t, report.Symbols, 3)
	assert.Equal(t, "i-home", report.Symbols[0].ID)
	assert.Equal(t, "0 0 24 24", report.Symbols[0].ViewBox)
	require.Len(t, report.Duplicates, 1)
	assert.Equal(t, filepath.Join(root, "src", "icons", "home.svg"), report.Duplicates[0].Kept)
}

func TestInspectCheck(t *testing.T) {
	root := newSite(t)
	svc := NewInspectService(loadConfig(t, func(c *config.Config) { c.TreeShaking.Enabled = true }), nil)

	report, err := svc.Check(context.Background(), root)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 3, report.Symbols, "tree-shaking never hides symbols from the check")
	assert.Equal(t, []DanglingReference{{Page: "blog/post.html", ID: "missing"}}, report.Dangling)
	assert.Equal(t, []string{"user"}, report.Unused)

	require.NoError(t, os.Remove(filepath.Join(root, "pages", "blog", "post.html")))
	report, err = svc.Check(context.Background(), root)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, []string{"search", "user"}, report.Unused)
}

func TestServeServiceLifecycle(t *testing.T) {
	root := newSite(t)
	cfg := loadConfig(t, func(c *config.Config) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = 0
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	var result *ServeResult
	go func() {
		var serveErr error
		result, serveErr = NewServeService(cfg, nil).Serve(ctx, ServeOptions{
			ProjectRoot: root,
			Listener:    ln,
			Ready:       func(url string) { ready <- url },
		})
		done <- serveErr
	}()

	var url string
	select {
	case url = <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/blog/post.html")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK &&
			strings.Contains(string(body), `<symbol id="search"`) &&
			strings.Contains(string(body), `id="iconsprite-client"`)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.Equal(t, 3, result.IconCount)
	assert.Equal(t, url, result.ServerURL)
}

func TestServeServiceRejectsEscapingIconDir(t *testing.T) {
	cfg := loadConfig(t, func(c *config.Config) { c.Sprite.IconDir = "/" })
	_, err := NewServeService(cfg, nil).Serve(context.Background(), ServeOptions{ProjectRoot: t.TempDir()})
	var traversal *spriteerrors.PathTraversalError
	assert.True(t, errors.As(err, &traversal))
}
