// Package svg holds the markup-level operations on a single icon: stripping
// executable content, extracting the view box and inner markup, and the
// optional optimizer capability.
package svg

import "regexp"

// sanitizeRule rewrites every match of pattern to replace.
type sanitizeRule struct {
	pattern *regexp.Regexp
	replace string
}

// Each rule targets a disjoint construct and removes it.
var sanitizeRules = []sanitizeRule{
	// script elements, then any stray open/close tags
	{pattern: regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)},
	{pattern: regexp.MustCompile(`(?i)</?script\b[^>]*>`)},
	// foreignObject elements
	{pattern: regexp.MustCompile(`(?is)<foreignObject\b[^>]*>.*?</foreignObject\s*>`)},
	{pattern: regexp.MustCompile(`(?i)</?foreignObject\b[^>]*>`)},
	// on* event handlers inside a tag, quoted or bare; text is left alone
	{
		pattern: regexp.MustCompile(`(?i)(<[^>]*?)\s+on[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`),
		replace: "$1",
	},
	// javascript: links
	{pattern: regexp.MustCompile(`(?i)\s+(?:xlink:)?href\s*=\s*(?:"\s*javascript:[^"]*"|'\s*javascript:[^']*'|javascript:[^\s>]*)`)},
	// data:text/html links
	{pattern: regexp.MustCompile(`(?i)\s+(?:xlink:)?href\s*=\s*(?:"\s*data:text/html[^"]*"|'\s*data:text/html[^']*'|data:text/html[^\s>]*)`)},
}

// Sanitize removes script elements, event handler attributes, javascript:
// and data:text/html links, and foreignObject elements from markup.
//
// Removal can join fragments into a new match ("<scr<script></script>ipt>"),
// and a tag loses one handler per pass, so the rules are reapplied until
// nothing changes. Every pass that changes the input shortens it, which
// bounds the loop. The result is therefore a fixed point and
// Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(markup string) string {
	for {
		out := markup
		for _, rule := range sanitizeRules {
			out = rule.pattern.ReplaceAllString(out, rule.replace)
		}
		if out == markup {
			return out
		}
		markup = out
	}
}
