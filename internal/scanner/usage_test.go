package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "use href",
			content: `<svg><use href="#home"></use></svg>`,
			want:    []string{"home"},
		},
		{
			name:    "use xlink href with other attributes",
			content: `<svg class="i"><use class="x" xlink:href='#user-circle'/></svg>`,
			want:    []string{"user-circle"},
		},
		{
			name:    "javascript object key",
			content: `const icon = { href: "#settings" };`,
			want:    []string{"settings"},
		},
		{
			name:    "setAttribute call",
			content: "el.setAttribute('href', `#search`)",
			want:    []string{"search"},
		},
		{
			name:    "jsx xlinkHref prop",
			content: `<use xlinkHref="#menu_open" />`,
			want:    []string{"menu_open"},
		},
		{
			name:    "multiple references deduplicated",
			content: `<use href="#a1"/><use href="#b2"/><use href="#a1"/>`,
			want:    []string{"a1", "b2"},
		},
		{
			name:    "identifier must start with a letter",
			content: `<use href="#1bad"/><use href="#-bad"/>`,
			want:    []string{},
		},
		{
			name:    "dynamic reference is not detected",
			content: `el.setAttribute('href', '#' + name)`,
			want:    []string{},
		},
		{
			name:    "external sprite file is not a fragment reference",
			content: `<use href="sprite.svg#home"/>`,
			want:    []string{},
		},
		{
			name:    "no references",
			content: `<div>plain</div>`,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanContent(tt.content).Sorted())
		})
	}
}

func TestFindUsedIdentifiersInFileMissing(t *testing.T) {
	s := New(logging.Nop())
	set := s.FindUsedIdentifiersInFile(context.Background(), filepath.Join(t.TempDir(), "gone.html"))
	assert.NotNil(t, set)
	assert.Empty(t, set)
}

func TestFindUsedIdentifiers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), `<svg><use href="#home"/></svg>`)
	writeFile(t, filepath.Join(root, "about.html"), `<svg><use xlink:href="#user"/></svg>`)
	writeFile(t, filepath.Join(root, "js", "app.js"), `render({ href: "#search" })`)
	writeFile(t, filepath.Join(root, "notes.txt"), `<use href="#ignored"/>`)
	writeFile(t, filepath.Join(root, "node_modules", "x", "index.js"), `{ href: "#vendor" }`)

	s := New(logging.Nop())
	used := s.FindUsedIdentifiers(context.Background(), root, []string{".html", ".js"})

	assert.Equal(t, []string{"home", "search", "user"}, used.Sorted())
}

func TestScanFilesManyFiles(t *testing.T) {
	root := t.TempDir()
	var files []string
	for i := 0; i < 40; i++ {
		path := filepath.Join(root, fmt.Sprintf("page%02d.html", i))
		writeFile(t, path, fmt.Sprintf(`<use href="#icon%d"/>`, i%10))
		files = append(files, path)
	}
	files = append(files, filepath.Join(root, "missing.html"))

	used := New(logging.Nop()).ScanFiles(context.Background(), files)
	require.Len(t, used, 10)
	for i := 0; i < 10; i++ {
		assert.True(t, used.Has(fmt.Sprintf("icon%d", i)))
	}
}

func TestIdentifierSet(t *testing.T) {
	set := NewIdentifierSet("b", "a")
	set.Merge(NewIdentifierSet("c", "a"))
	set.Add("d")

	assert.True(t, set.Has("c"))
	assert.False(t, set.Has("z"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, set.Sorted())
}

func TestReferencesInDocument(t *testing.T) {
	doc := `<!doctype html>
<html><body>
<svg><use href="#home"></use></svg>
<svg><use xlink:href="#user"></use></svg>
<!-- <svg><use href="#commented"></use></svg> -->
<svg><use href="#home"></use></svg>
<svg><use href="external.svg#nope"></use></svg>
<a href="#top">top</a>
</body></html>`

	refs, err := ReferencesInDocument(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "user"}, refs)
}
