package build

import (
	"context"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/iconsprite/internal/logging"
	"github.com/conneroisu/iconsprite/internal/svg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// XLinkNamespace is declared on the sprite for legacy xlink:href users.
const XLinkNamespace = "http://www.w3.org/1999/xlink"

// SpriteStyle hides the sprite container without removing it from layout
// calculations that <use> depends on.
const SpriteStyle = "position:absolute;width:0;height:0;overflow:hidden"

var unsafeIDChars = regexp.MustCompile(`[^a-z0-9_-]`)

// SymbolID derives the symbol identifier for an icon file: the base name
// without extension, lowercased, with characters outside [a-z0-9_-]
// replaced by "-", and prefixed by "prefix-" when prefix is set.
func SymbolID(path, prefix string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	// Casers are stateful, so one is made per call.
	id := unsafeIDChars.ReplaceAllString(cases.Lower(language.Und).String(base), "-")
	if prefix != "" {
		return prefix + "-" + id
	}
	return id
}

// Symbol is one named fragment of a sprite.
type Symbol struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	ViewBox string `json:"viewBox"`
	Content string `json:"-"`
}

// Duplicate records an icon dropped because its identifier was taken.
type Duplicate struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	// Kept is the file that owns the identifier.
	Kept string `json:"kept"`
}

// Sprite is the assembled inline sprite document.
type Sprite struct {
	ID         string      `json:"id"`
	Class      string      `json:"class"`
	Symbols    []Symbol    `json:"symbols"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
}

// Count returns the number of symbols.
func (s *Sprite) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Symbols)
}

// IDs returns symbol identifiers in sprite order.
func (s *Sprite) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Symbols))
	for i, sym := range s.Symbols {
		ids[i] = sym.ID
	}
	return ids
}

// Has reports whether the sprite defines id.
func (s *Sprite) Has(id string) bool {
	if s == nil {
		return false
	}
	for _, sym := range s.Symbols {
		if sym.ID == id {
			return true
		}
	}
	return false
}

// Markup renders the sprite container with every symbol inline.
func (s *Sprite) Markup() string {
	var b strings.Builder
	b.WriteString(`<svg id="`)
	b.WriteString(html.EscapeString(s.ID))
	b.WriteString(`" class="`)
	b.WriteString(html.EscapeString(s.Class))
	b.WriteString(`" xmlns="`)
	b.WriteString(svg.Namespace)
	b.WriteString(`" xmlns:xlink="`)
	b.WriteString(XLinkNamespace)
	b.WriteString(`" style="`)
	b.WriteString(SpriteStyle)
	b.WriteString(`" aria-hidden="true">`)
	for _, sym := range s.Symbols {
		b.WriteString(SymbolMarkup(sym))
	}
	b.WriteString(`</svg>`)
	return b.String()
}

// SymbolMarkup renders one <symbol> fragment. The identifier is escaped;
// content is already sanitized by the parser.
func SymbolMarkup(sym Symbol) string {
	return `<symbol id="` + html.EscapeString(sym.ID) +
		`" viewBox="` + html.EscapeString(sym.ViewBox) + `">` +
		sym.Content + `</symbol>`
}

// Assembler turns parsed icons into a Sprite.
type Assembler struct {
	ID     string
	Class  string
	Prefix string
	logger logging.Logger
}

// NewAssembler creates an assembler for a sprite container with the given
// element id and class, deriving symbol identifiers with prefix.
func NewAssembler(id, class, prefix string, logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Assembler{
		ID:     id,
		Class:  class,
		Prefix: prefix,
		logger: logger.WithComponent("assembler"),
	}
}

// Assemble builds a sprite from icons in their given order. The first icon
// to claim an identifier keeps it; later icons with the same identifier are
// reported in Duplicates and left out.
func (a *Assembler) Assemble(ctx context.Context, icons []Icon) *Sprite {
	sprite := &Sprite{
		ID:      a.ID,
		Class:   a.Class,
		Symbols: make([]Symbol, 0, len(icons)),
	}

	owners := make(map[string]string, len(icons))
	for _, icon := range icons {
		id := SymbolID(icon.Path, a.Prefix)
		if owner, taken := owners[id]; taken {
			sprite.Duplicates = append(sprite.Duplicates, Duplicate{ID: id, Path: icon.Path, Kept: owner})
			continue
		}
		owners[id] = icon.Path
		sprite.Symbols = append(sprite.Symbols, Symbol{
			ID:      id,
			Path:    icon.Path,
			ViewBox: icon.ViewBox,
			Content: icon.Content,
		})
	}

	if len(sprite.Duplicates) > 0 {
		dropped := make([]string, len(sprite.Duplicates))
		for i, d := range sprite.Duplicates {
			dropped[i] = d.ID + " (" + d.Path + ")"
		}
		a.logger.Warn(ctx, nil, "Duplicate icon identifiers, keeping the first file for each",
			"count", len(sprite.Duplicates), "dropped", strings.Join(dropped, ", "))
	}

	return sprite
}
