package build

import (
	"context"
	"strings"
	"testing"

	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolID(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		want   string
	}{
		{"/icons/home.svg", "", "home"},
		{"/icons/home.svg", "icon", "icon-home"},
		{"/icons/Arrow Left.SVG", "", "arrow-left"},
		{"/icons/nav/chevron_down.svg", "", "chevron_down"},
		{"/icons/user.profile.svg", "", "user-profile"},
		{"/icons/Ünïcode.svg", "", "-n-code"},
		{"/icons/a&b.svg", "x", "x-a-b"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, SymbolID(tt.path, tt.prefix))
		})
	}
}

func icons(paths ...string) []Icon {
	out := make([]Icon, len(paths))
	for i, p := range paths {
		out[i] = Icon{Path: p, ParsedIcon: ParsedIcon{ViewBox: "0 0 24 24", Content: `<path d="` + p + `"/>`}}
	}
	return out
}

func TestAssembleBasic(t *testing.T) {
	a := NewAssembler("icon-sprite", "svg-sprite", "", logging.Nop())
	in := icons("/i/home.svg", "/i/user.svg", "/i/settings.svg")
	in[1].ViewBox = "0 0 16 16"

	sprite := a.Assemble(context.Background(), in)

	require.Equal(t, 3, sprite.Count())
	assert.Equal(t, []string{"home", "user", "settings"}, sprite.IDs())
	assert.Empty(t, sprite.Duplicates)

	markup := sprite.Markup()
	assert.True(t, strings.HasPrefix(markup, `<svg id="icon-sprite" class="svg-sprite" xmlns="http://www.w3.org/2000/svg"`))
	assert.True(t, strings.HasSuffix(markup, `</svg>`))
	assert.Contains(t, markup, `aria-hidden="true"`)
	assert.Contains(t, markup, `<symbol id="home" viewBox="0 0 24 24"><path d="/i/home.svg"/></symbol>`)
	assert.Contains(t, markup, `<symbol id="user" viewBox="0 0 16 16">`)
	assert.Equal(t, 3, strings.Count(markup, "<symbol "))
}

func TestAssemblePrefix(t *testing.T) {
	sprite := NewAssembler("s", "c", "icon", nil).Assemble(context.Background(), icons("/i/home.svg"))
	assert.Equal(t, []string{"icon-home"}, sprite.IDs())
	assert.True(t, sprite.Has("icon-home"))
	assert.False(t, sprite.Has("home"))
}

func TestAssembleDuplicatesFirstWins(t *testing.T) {
	var buf strings.Builder
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Output: &buf})

	in := icons("/i/a/home.svg", "/i/b/Home.svg", "/i/c/home.svg", "/i/user.svg")
	sprite := NewAssembler("s", "c", "", logger).Assemble(context.Background(), in)

	assert.Equal(t, []string{"home", "user"}, sprite.IDs())
	assert.Equal(t, "/i/a/home.svg", sprite.Symbols[0].Path)
	assert.Equal(t, []Duplicate{
		{ID: "home", Path: "/i/b/Home.svg", Kept: "/i/a/home.svg"},
		{ID: "home", Path: "/i/c/home.svg", Kept: "/i/a/home.svg"},
	}, sprite.Duplicates)

	assert.Equal(t, 1, strings.Count(buf.String(), "Duplicate icon identifiers"), "one aggregated warning")
	assert.Contains(t, buf.String(), "count=2")
}

func TestAssembleEmpty(t *testing.T) {
	sprite := NewAssembler("icon-sprite", "svg-sprite", "", nil).Assemble(context.Background(), nil)
	assert.Equal(t, 0, sprite.Count())

	markup := sprite.Markup()
	assert.True(t, strings.HasPrefix(markup, `<svg id="icon-sprite"`))
	assert.True(t, strings.HasSuffix(markup, `aria-hidden="true"></svg>`))
	assert.NotContains(t, markup, "<symbol")
}

func TestMarkupEscapesAttributes(t *testing.T) {
	sprite := &Sprite{
		ID:    `x"><script>`,
		Class: "a&b",
		Symbols: []Symbol{
			{ID: `p'"<>&`, ViewBox: "0 0 1 1", Content: "<rect/>"},
		},
	}

	markup := sprite.Markup()
	assert.Contains(t, markup, `id="x&#34;&gt;&lt;script&gt;"`)
	assert.Contains(t, markup, `class="a&amp;b"`)
	assert.Contains(t, markup, `<symbol id="p&#39;&#34;&lt;&gt;&amp;"`)
	assert.NotContains(t, markup, "<script>")
}

func TestNilSprite(t *testing.T) {
	var sprite *Sprite
	assert.Equal(t, 0, sprite.Count())
	assert.Nil(t, sprite.IDs())
	assert.False(t, sprite.Has("x"))
}

func TestFilterToUsed(t *testing.T) {
	all := icons("/i/home.svg", "/i/search.svg", "/i/user.svg", "/i/settings.svg")

	t.Run("keeps referenced icons in order", func(t *testing.T) {
		kept := FilterToUsed(all, scanner.NewIdentifierSet("user", "home"), "")
		require.Len(t, kept, 2)
		assert.Equal(t, "/i/home.svg", kept[0].Path)
		assert.Equal(t, "/i/user.svg", kept[1].Path)
	})

	t.Run("empty usage set keeps everything", func(t *testing.T) {
		assert.Equal(t, all, FilterToUsed(all, scanner.NewIdentifierSet(), ""))
		assert.Equal(t, all, FilterToUsed(all, nil, ""))
	})

	t.Run("matches prefixed identifiers", func(t *testing.T) {
		kept := FilterToUsed(all, scanner.NewIdentifierSet("icon-search", "search"), "icon")
		require.Len(t, kept, 1)
		assert.Equal(t, "/i/search.svg", kept[0].Path)
	})

	t.Run("no matches yields nothing", func(t *testing.T) {
		assert.Empty(t, FilterToUsed(all, scanner.NewIdentifierSet("unknown"), ""))
	})
}
