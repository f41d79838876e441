//go:build property

package validation

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestIconDirProperties checks path safety over generated inputs.
func TestIconDirProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	root := t.TempDir()

	segment := gen.OneConstOf("icons", "src", "..", ".", "a b", "..svg", "deep")

	properties.Property("traversal sequences that climb above the root are rejected", prop.ForAll(
		func(extra int, tail []string) bool {
			parts := make([]string, 0, extra+1+len(tail))
			for i := 0; i <= extra; i++ {
				parts = append(parts, "..")
			}
			parts = append(parts, tail...)
			_, err := ValidateIconDir(strings.Join(parts, "/"), root)
			return err != nil
		},
		gen.IntRange(0, 4),
		gen.SliceOfN(3, gen.OneConstOf("icons", "src", "deep")),
	))

	properties.Property("accepted paths are absolute and inside the root", prop.ForAll(
		func(parts []string) bool {
			resolved, err := ValidateIconDir(filepath.Join(parts...), root)
			if err != nil {
				rel, relErr := filepath.Rel(root, filepath.Join(root, filepath.Join(parts...)))
				return relErr == nil && (rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)))
			}
			if !filepath.IsAbs(resolved) {
				return false
			}
			rel, relErr := filepath.Rel(root, resolved)
			return relErr == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
		},
		gen.SliceOfN(4, segment),
	))

	properties.Property("absolute paths outside the root are rejected", prop.ForAll(
		func(name string) bool {
			_, err := ValidateIconDir(filepath.Join(filepath.Dir(root), "sibling-"+name), root)
			return err != nil
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
