// Package scanner provides icon discovery and icon usage analysis.
//
// Discovery walks a validated icon directory depth-first and yields .svg
// files in a deterministic order, skipping hidden entries and dependency
// manager directories. Usage analysis scans arbitrary source files for
// references into the sprite so unused symbols can be tree-shaken out of
// production pages. Neither operation fails as a whole: unreadable
// directories and files are logged and contribute nothing.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/conneroisu/iconsprite/internal/logging"
)

// DefaultMaxDepth bounds recursion for extension scans.
const DefaultMaxDepth = 10

// maxWorkers caps the scan worker pool regardless of CPU count.
const maxWorkers = 8

// IconExtension is the only file extension treated as an icon source.
const IconExtension = ".svg"

// dependencyDirs are package manager directories never descended into.
var dependencyDirs = map[string]struct{}{
	"node_modules":     {},
	"bower_components": {},
	"jspm_packages":    {},
	"vendor":           {},
}

// Scanner discovers icon files and scans sources for icon references.
type Scanner struct {
	logger  logging.Logger
	workers int
}

// New creates a scanner that reports skipped entries through logger.
func New(logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Nop()
	}

	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	if workers < 1 {
		workers = 1
	}

	return &Scanner{
		logger:  logger.WithComponent("scanner"),
		workers: workers,
	}
}

// IsIgnored reports whether a directory entry name is excluded from every
// walk: hidden entries and dependency manager directories.
func IsIgnored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := dependencyDirs[name]
	return ok
}

// IsIcon reports whether path names an icon source file.
func IsIcon(path string) bool {
	return strings.EqualFold(filepath.Ext(path), IconExtension)
}

// FindIcons returns every icon file under root in depth-first order with
// entries sorted by name at each level. A missing root yields an empty
// result and a warning.
func (s *Scanner) FindIcons(ctx context.Context, root string) []string {
	if !s.rootExists(ctx, root) {
		return nil
	}

	var files []string
	s.walk(ctx, root, 0, -1, func(path string) {
		if IsIcon(path) {
			files = append(files, path)
		}
	})

	return files
}

// FindFilesByExtension returns files under root whose extension matches one
// of exts (case-insensitive, leading dot optional). Directories deeper than
// maxDepth are skipped with a warning; maxDepth <= 0 selects DefaultMaxDepth.
func (s *Scanner) FindFilesByExtension(ctx context.Context, root string, exts []string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if !s.rootExists(ctx, root) {
		return nil
	}

	wanted := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		wanted[ext] = struct{}{}
	}

	var files []string
	s.walk(ctx, root, 0, maxDepth, func(path string) {
		if _, ok := wanted[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
	})

	return files
}

func (s *Scanner) rootExists(ctx context.Context, root string) bool {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn(ctx, nil, "Icon directory does not exist, producing empty result", "dir", root)
		} else {
			s.logger.Warn(ctx, err, "Cannot stat scan root", "dir", root)
		}
		return false
	}
	if !info.IsDir() {
		s.logger.Warn(ctx, nil, "Scan root is not a directory", "dir", root)
		return false
	}
	return true
}

// walk visits files depth-first. maxDepth < 0 disables the depth cap.
func (s *Scanner) walk(ctx context.Context, dir string, depth, maxDepth int, visit func(string)) {
	if ctx.Err() != nil {
		return
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn(ctx, err, "Failed to read directory, skipping", "dir", dir)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if IsIgnored(name) {
			continue
		}

		path := filepath.Join(dir, name)
		if entry.IsDir() {
			if maxDepth >= 0 && depth+1 > maxDepth {
				s.logger.Warn(ctx, nil, "Maximum scan depth reached, skipping directory",
					"dir", path, "max_depth", maxDepth)
				continue
			}
			s.walk(ctx, path, depth+1, maxDepth, visit)
			continue
		}

		if entry.Type().IsRegular() {
			visit(path)
		}
	}
}
