// Package inject turns a sprite into injectable tags and splices them into
// page markup.
package inject

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/livereload"
	"github.com/conneroisu/iconsprite/internal/svg"
	xhtml "golang.org/x/net/html"
)

// DefaultWebSocketPath is where the dev server accepts live-update clients.
const DefaultWebSocketPath = "/__iconsprite/ws"

const configPlaceholder = "__ICONSPRITE_CONFIG__"

//go:embed client.js
var clientScript string

// Position says where a tag goes in the page.
type Position string

const (
	// BodyPrepend inserts right after the opening <body> tag.
	BodyPrepend Position = "body-prepend"
	// BodyAppend inserts right before </body>.
	BodyAppend Position = "body"
	// HeadAppend inserts right before </head>.
	HeadAppend Position = "head"
)

// TagDescriptor describes one element to inject. Children is raw markup.
type TagDescriptor struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children string            `json:"children,omitempty"`
	InjectTo Position          `json:"injectTo"`
}

// HTML renders the descriptor. Attributes are written in name order.
func (d TagDescriptor) HTML() string {
	names := make([]string, 0, len(d.Attrs))
	for name := range d.Attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(d.Tag)
	for _, name := range names {
		b.WriteString(" ")
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(d.Attrs[name]))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	b.WriteString(d.Children)
	b.WriteString("</")
	b.WriteString(d.Tag)
	b.WriteString(">")
	return b.String()
}

// SpriteTag describes the inline sprite container, placed first in the
// body so every <use> on the page resolves without a request.
func SpriteTag(sprite *build.Sprite) TagDescriptor {
	var children strings.Builder
	if sprite != nil {
		for _, sym := range sprite.Symbols {
			children.WriteString(build.SymbolMarkup(sym))
		}
	}
	id, class := "", ""
	if sprite != nil {
		id, class = sprite.ID, sprite.Class
	}
	return TagDescriptor{
		Tag: "svg",
		Attrs: map[string]string{
			"id":          id,
			"class":       class,
			"xmlns":       svg.Namespace,
			"xmlns:xlink": build.XLinkNamespace,
			"style":       build.SpriteStyle,
			"aria-hidden": "true",
		},
		Children: children.String(),
		InjectTo: BodyPrepend,
	}
}

// ClientConfig parameterizes the live-update client script.
type ClientConfig struct {
	Path     string `json:"path"`
	SpriteID string `json:"spriteId"`
	Event    string `json:"event"`
}

// ClientScript returns the live-update client with cfg inlined.
func ClientScript(cfg ClientConfig) string {
	if cfg.Path == "" {
		cfg.Path = DefaultWebSocketPath
	}
	if cfg.Event == "" {
		cfg.Event = livereload.UpdateEvent
	}
	// json.Marshal escapes <, > and &, so the payload cannot close the
	// script element.
	data, _ := json.Marshal(cfg)
	return strings.Replace(clientScript, configPlaceholder, string(data), 1)
}

// ClientScriptID identifies the injected client script element.
const ClientScriptID = "iconsprite-client"

// ClientScriptTag describes the live-update client script.
func ClientScriptTag(cfg ClientConfig) TagDescriptor {
	return TagDescriptor{
		Tag:      "script",
		Attrs:    map[string]string{"id": ClientScriptID, "type": "module"},
		Children: ClientScript(cfg),
		InjectTo: BodyAppend,
	}
}

// Apply splices tags into markup. An existing element with the same tag
// name and id as a descriptor is removed first, so reapplying replaces a
// stale sprite. Pages without <head> or <body> get the tags at the start
// (body-prepend, head) or end (body) of the document.
func Apply(markup string, tags []TagDescriptor) (string, error) {
	if len(tags) == 0 {
		return markup, nil
	}

	byPosition := make(map[Position][]string)
	replace := make(map[string]string)
	for _, tag := range tags {
		pos := tag.InjectTo
		if pos == "" {
			pos = BodyPrepend
		}
		byPosition[pos] = append(byPosition[pos], tag.HTML())
		if id := tag.Attrs["id"]; id != "" {
			replace[strings.ToLower(tag.Tag)] = id
		}
	}

	var out bytes.Buffer
	placed := make(map[Position]bool)
	place := func(pos Position) {
		if placed[pos] {
			return
		}
		placed[pos] = true
		for _, tagHTML := range byPosition[pos] {
			out.WriteString(tagHTML)
		}
	}

	z := xhtml.NewTokenizer(strings.NewReader(markup))
	// skipTag and skipDepth follow a stale element being dropped.
	var skipTag string
	skipDepth := 0

	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			break
		}

		// TagName and TagAttr lowercase the buffer in place, so copy first.
		raw := append([]byte(nil), z.Raw()...)
		var tagName string
		var hasAttr bool
		if tt == xhtml.StartTagToken || tt == xhtml.EndTagToken || tt == xhtml.SelfClosingTagToken {
			var name []byte
			name, hasAttr = z.TagName()
			tagName = string(name)
		}

		if skipTag != "" {
			switch {
			case tt == xhtml.StartTagToken && tagName == skipTag:
				skipDepth++
			case tt == xhtml.EndTagToken && tagName == skipTag:
				skipDepth--
				if skipDepth == 0 {
					skipTag = ""
				}
			}
			continue
		}

		switch tt {
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			if id, ok := replace[tagName]; ok && hasAttr && attrValue(z, "id") == id {
				if tt == xhtml.StartTagToken {
					skipTag, skipDepth = tagName, 1
				}
				continue
			}
			out.Write(raw)
			if tt == xhtml.StartTagToken && tagName == "body" {
				place(BodyPrepend)
			}
		case xhtml.EndTagToken:
			switch tagName {
			case "head":
				place(HeadAppend)
			case "body":
				place(BodyAppend)
			}
			out.Write(raw)
		default:
			out.Write(raw)
		}
	}

	result := out.String()
	var prefix strings.Builder
	for _, pos := range []Position{HeadAppend, BodyPrepend} {
		if !placed[pos] {
			for _, tagHTML := range byPosition[pos] {
				prefix.WriteString(tagHTML)
			}
		}
	}
	if !placed[BodyAppend] {
		result += strings.Join(byPosition[BodyAppend], "")
	}
	return prefix.String() + result, nil
}

// attrValue reads attribute key of the current tag. It consumes the
// tokenizer's attribute iterator.
func attrValue(z *xhtml.Tokenizer, key string) string {
	for {
		k, v, more := z.TagAttr()
		if string(k) == key {
			return string(v)
		}
		if !more {
			return ""
		}
	}
}
