package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/config"
	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/inject"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/plugin"
	"github.com/conneroisu/iconsprite/internal/scanner"
)

// AnalysisFile is written to the output directory when analysis is on.
const AnalysisFile = "sprite-analysis.json"

// BuildService renders the pages directory into the output directory with
// the sprite inlined into every page.
type BuildService struct {
	config *config.Config
	logger logging.Logger
}

// NewBuildService creates a new build service
func NewBuildService(cfg *config.Config, logger logging.Logger) *BuildService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &BuildService{
		config: cfg,
		logger: logger.WithComponent("build"),
	}
}

// BuildOptions contains options for the build process
type BuildOptions struct {
	ProjectRoot string
	// Output overrides pages.out_dir.
	Output  string
	Clean   bool
	Analyze bool
}

// PageReport describes one transformed page.
type PageReport struct {
	Path    string   `json:"path"`
	Symbols []string `json:"symbols"`
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Duration   time.Duration     `json:"duration"`
	OutputDir  string            `json:"outputDir"`
	IconCount  int               `json:"iconCount"`
	Duplicates []build.Duplicate `json:"duplicates,omitempty"`
	Pages      []PageReport      `json:"pages"`
	Assets     int               `json:"assets"`
	Success    bool              `json:"success"`
}

// Build resolves the plugin in build mode, builds the sprite, and writes
// every page and asset to the output directory.
func (s *BuildService) Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	start := time.Now()
	perf := logging.StartOperation(s.logger, "site_build")

	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	p := plugin.New(s.config, s.logger)
	if err := p.ConfigResolved(root, build.ModeBuild); err != nil {
		return nil, err
	}
	defer p.Close()

	built, err := p.BuildStart(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	pagesDir := joinRoot(root, s.config.Pages.Dir)
	outDir := opts.Output
	if outDir == "" {
		outDir = s.config.Pages.OutDir
	}
	outDir = joinRoot(root, outDir)

	result := &BuildResult{
		OutputDir:  outDir,
		IconCount:  built.Sprite.Count(),
		Duplicates: built.Sprite.Duplicates,
	}

	if opts.Clean {
		if err := os.RemoveAll(outDir); err != nil {
			return nil, spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to clean output directory", err).WithFile(outDir)
		}
	}

	if _, err := os.Stat(pagesDir); err != nil {
		s.logger.Warn(ctx, err, "Pages directory not found, nothing to render", "dir", pagesDir)
	} else if err := s.renderPages(ctx, p, pagesDir, outDir, result); err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	if opts.Analyze {
		if err := writeAnalysis(outDir, result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	result.Success = true
	perf.End(ctx, "pages", len(result.Pages), "assets", result.Assets, "icons", result.IconCount)
	return result, nil
}

func (s *BuildService) renderPages(ctx context.Context, p *plugin.Plugin, pagesDir, outDir string, result *BuildResult) error {
	return filepath.WalkDir(pagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			// output nested inside the pages directory is not an input
			if path == outDir || (path != pagesDir && scanner.IsIgnored(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(pagesDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(outDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to create output directory", err).WithFile(target)
		}

		if !isPage(path) {
			result.Assets++
			return copyFile(path, target)
		}

		report, err := s.renderPage(ctx, p, path, filepath.ToSlash(rel), target)
		if err != nil {
			return err
		}
		result.Pages = append(result.Pages, report)
		return nil
	})
}

func (s *BuildService) renderPage(ctx context.Context, p *plugin.Plugin, path, rel, target string) (PageReport, error) {
	markup, err := os.ReadFile(path)
	if err != nil {
		return PageReport{}, spriteerrors.NewIOError(spriteerrors.ErrCodePageTransform, "failed to read page", err).WithFile(path)
	}

	tags, err := p.TransformPage(ctx, string(markup), rel)
	if err != nil {
		return PageReport{}, err
	}

	session, err := p.Session()
	if err != nil {
		return PageReport{}, err
	}
	// cached by TransformPage
	symbols := session.PageSprite(ctx, rel, string(markup)).IDs()

	html, err := inject.Apply(string(markup), tags)
	if err != nil {
		return PageReport{}, spriteerrors.NewBuildError(spriteerrors.ErrCodePageTransform, "failed to inject sprite", err).WithFile(path)
	}
	if err := os.WriteFile(target, []byte(html), 0o644); err != nil {
		return PageReport{}, spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to write page", err).WithFile(target)
	}

	s.logger.Debug(ctx, "Page rendered", "page", rel, "symbols", len(symbols))
	return PageReport{Path: rel, Symbols: symbols}, nil
}

func writeAnalysis(outDir string, result *BuildResult) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to create output directory", err).WithFile(outDir)
	}
	pages := append([]PageReport(nil), result.Pages...)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })

	data, err := json.MarshalIndent(struct {
		Timestamp  time.Time         `json:"timestamp"`
		IconCount  int               `json:"iconCount"`
		Duplicates []build.Duplicate `json:"duplicates,omitempty"`
		Pages      []PageReport      `json:"pages"`
	}{time.Now().UTC(), result.IconCount, result.Duplicates, pages}, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outDir, AnalysisFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to write analysis", err).WithFile(path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to open asset", err).WithFile(src)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to create asset", err).WithFile(dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return spriteerrors.NewIOError(spriteerrors.ErrCodeOutputWrite, "failed to copy asset", err).WithFile(dst)
	}
	return out.Close()
}

func joinRoot(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

func isPage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
