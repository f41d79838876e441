package scanner

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var useSelector = cascadia.MustCompile("use")

// ReferencesInDocument parses an HTML document and returns the distinct
// fragment identifiers targeted by <use> elements, in document order.
// Both href and xlink:href are honoured. Unlike ScanContent this follows
// real HTML parsing rules, so commented-out markup is ignored.
func ReferencesInDocument(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	seen := make(map[string]struct{})
	var refs []string
	for _, node := range useSelector.MatchAll(doc) {
		for _, attr := range node.Attr {
			// xlink:href is parsed as Namespace "xlink", Key "href".
			if attr.Key != "href" || !strings.HasPrefix(attr.Val, "#") {
				continue
			}
			id := strings.TrimPrefix(attr.Val, "#")
			if !ValidIdentifier(id) {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			refs = append(refs, id)
		}
	}

	return refs, nil
}
