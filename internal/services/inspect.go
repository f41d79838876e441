package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/config"
	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/plugin"
	"github.com/conneroisu/iconsprite/internal/scanner"
)

// InspectService answers questions about a project's icons without
// writing anything.
type InspectService struct {
	config *config.Config
	logger logging.Logger
}

// NewInspectService creates an inspect service.
func NewInspectService(cfg *config.Config, logger logging.Logger) *InspectService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &InspectService{config: cfg, logger: logger.WithComponent("inspect")}
}

// IconReport lists the symbols a build would produce.
type IconReport struct {
	IconDir    string            `json:"iconDir"`
	Symbols    []build.Symbol    `json:"symbols"`
	Duplicates []build.Duplicate `json:"duplicates,omitempty"`
}

// DanglingReference is a <use> reference with no matching symbol.
type DanglingReference struct {
	Page string `json:"page"`
	ID   string `json:"id"`
}

// CheckReport is the result of checking pages against the sprite.
type CheckReport struct {
	Pages    int                 `json:"pages"`
	Symbols  int                 `json:"symbols"`
	Dangling []DanglingReference `json:"dangling"`
	// Unused lists symbols no page references.
	Unused []string `json:"unused"`
}

// OK reports whether every reference resolves.
func (r *CheckReport) OK() bool {
	return len(r.Dangling) == 0
}

// List builds the full sprite and reports its symbols and duplicates.
func (s *InspectService) List(ctx context.Context, projectRoot string) (*IconReport, error) {
	p, err := s.resolve(projectRoot)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	result, err := p.BuildStart(ctx)
	if err != nil {
		return nil, err
	}
	session, _ := p.Session()
	return &IconReport{
		IconDir:    session.Config().IconDir,
		Symbols:    result.Sprite.Symbols,
		Duplicates: result.Sprite.Duplicates,
	}, nil
}

// Check parses every page and reports <use> references that no symbol
// defines, and symbols that no page uses.
func (s *InspectService) Check(ctx context.Context, projectRoot string) (*CheckReport, error) {
	p, err := s.resolve(projectRoot)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	result, err := p.BuildStart(ctx)
	if err != nil {
		return nil, err
	}
	sprite := result.Sprite
	report := &CheckReport{Symbols: sprite.Count(), Dangling: []DanglingReference{}, Unused: []string{}}

	pagesDir := joinRoot(p.ProjectRoot(), s.config.Pages.Dir)
	used := make(map[string]struct{})
	if _, statErr := os.Stat(pagesDir); statErr != nil {
		s.logger.Warn(ctx, statErr, "Pages directory not found", "dir", pagesDir)
		report.Unused = sprite.IDs()
		sort.Strings(report.Unused)
		return report, nil
	}
	err = filepath.WalkDir(pagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != pagesDir && scanner.IsIgnored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPage(path) {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		refs, err := scanner.ReferencesInDocument(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		rel, _ := filepath.Rel(pagesDir, path)
		report.Pages++
		for _, id := range refs {
			used[id] = struct{}{}
			if !sprite.Has(id) {
				report.Dangling = append(report.Dangling, DanglingReference{Page: filepath.ToSlash(rel), ID: id})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range sprite.IDs() {
		if _, ok := used[id]; !ok {
			report.Unused = append(report.Unused, id)
		}
	}
	sort.Strings(report.Unused)

	s.logger.Debug(ctx, "Pages checked", "pages", report.Pages, "dangling", len(report.Dangling))
	return report, nil
}

// resolve creates a plugin in build mode without tree-shaking so every
// icon is considered.
func (s *InspectService) resolve(projectRoot string) (*plugin.Plugin, error) {
	if projectRoot == "" {
		projectRoot = "."
	}
	cfg := *s.config
	cfg.TreeShaking.Enabled = false

	p := plugin.New(&cfg, s.logger)
	if err := p.ConfigResolved(projectRoot, build.ModeBuild); err != nil {
		return nil, err
	}
	return p, nil
}
