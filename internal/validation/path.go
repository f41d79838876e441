// Package validation provides security validation for user-supplied paths,
// URLs, and websocket origins.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/iconsprite/internal/errors"
)

// ValidateIconDir resolves userPath against projectRoot and returns the
// absolute, cleaned directory. It fails with a *errors.PathTraversalError
// when the resolved path escapes the root, whether through parent-directory
// segments or an absolute path elsewhere on the filesystem.
//
// The directory is not required to exist; a missing icon directory is a
// recoverable condition handled by discovery.
func ValidateIconDir(userPath, projectRoot string) (string, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolving project root %q: %w", projectRoot, err)
	}
	root = filepath.Clean(root)

	resolved := userPath
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(root, resolved)
	if err != nil || escapesRoot(rel) {
		return "", &errors.PathTraversalError{
			Input:    userPath,
			Resolved: resolved,
			Root:     root,
		}
	}

	return resolved, nil
}

// escapesRoot reports whether a root-relative path leaves the root.
func escapesRoot(rel string) bool {
	if filepath.IsAbs(rel) {
		return true
	}
	if rel == ".." {
		return true
	}
	return strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
