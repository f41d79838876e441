package svg

import (
	"regexp"
	"strings"
)

// DefaultViewBox is used when an icon declares no viewBox.
const DefaultViewBox = "0 0 24 24"

// Namespace is the SVG XML namespace.
const Namespace = "http://www.w3.org/2000/svg"

var (
	rootOpenPattern = regexp.MustCompile(`(?i)<svg\b`)
	viewBoxPattern  = regexp.MustCompile(`(?is)<svg\b[^>]*?\sviewBox\s*=\s*["']([^"']*)["']`)
	innerPattern    = regexp.MustCompile(`(?is)<svg\b[^>]*>(.*)</svg\s*>`)
)

// HasRoot reports whether markup contains an opening <svg> tag.
func HasRoot(markup string) bool {
	return rootOpenPattern.MatchString(markup)
}

// ExtractViewBox returns the root element's viewBox and whether one was
// declared. A missing or blank attribute yields DefaultViewBox.
func ExtractViewBox(markup string) (string, bool) {
	match := viewBoxPattern.FindStringSubmatch(markup)
	if match == nil {
		return DefaultViewBox, false
	}
	viewBox := strings.Join(strings.Fields(match[1]), " ")
	if viewBox == "" {
		return DefaultViewBox, false
	}
	return viewBox, true
}

// ExtractInner returns the markup between the outermost <svg> tags.
func ExtractInner(markup string) (string, bool) {
	match := innerPattern.FindStringSubmatch(markup)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// Wrap builds a standalone document around inner markup.
func Wrap(viewBox, inner string) string {
	var b strings.Builder
	b.Grow(len(inner) + len(viewBox) + 64)
	b.WriteString(`<svg xmlns="`)
	b.WriteString(Namespace)
	b.WriteString(`" viewBox="`)
	b.WriteString(viewBox)
	b.WriteString(`">`)
	b.WriteString(inner)
	b.WriteString(`</svg>`)
	return b.String()
}
