package inject

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/conneroisu/iconsprite/internal/build"
	"github.com/conneroisu/iconsprite/internal/livereload"
)

//go:embed gallery.js
var galleryScript string

const galleryStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}` +
	`ul{list-style:none;padding:0;display:grid;grid-template-columns:repeat(auto-fill,minmax(8rem,1fr));gap:1rem}` +
	`li{display:flex;flex-direction:column;align-items:center;gap:.5rem;padding:1rem;border:1px solid #ddd;border-radius:.5rem}` +
	`li svg{width:2rem;height:2rem}code{font-size:.75rem;word-break:break-all}`

// GalleryComponent renders a standalone page that draws every symbol of
// sprite next to its identifier through SpriteComponent. The page carries
// ClientScriptComponent and redraws the list after each live update.
func GalleryComponent(sprite *build.Sprite, client ClientConfig) templ.Component {
	if sprite == nil {
		sprite = &build.Sprite{}
	}
	if client.SpriteID == "" {
		client.SpriteID = sprite.ID
	}
	if client.Event == "" {
		client.Event = livereload.UpdateEvent
	}

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Icons</title><style>`)
		b.WriteString(galleryStyle)
		b.WriteString(`</style></head><body>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := SpriteComponent(sprite).Render(ctx, w); err != nil {
			return err
		}

		b.Reset()
		b.WriteString(`<h1><span id="iconsprite-count">`)
		b.WriteString(strconv.Itoa(sprite.Count()))
		b.WriteString(`</span> icons</h1><ul id="iconsprite-gallery">`)
		for _, sym := range sprite.Symbols {
			id := templ.EscapeString(sym.ID)
			b.WriteString(`<li><svg viewBox="`)
			b.WriteString(templ.EscapeString(sym.ViewBox))
			b.WriteString(`"><use href="#`)
			b.WriteString(id)
			b.WriteString(`"></use></svg><code>`)
			b.WriteString(id)
			b.WriteString(`</code></li>`)
		}
		b.WriteString(`</ul>`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		if err := ClientScriptComponent(client).Render(ctx, w); err != nil {
			return err
		}
		// json.Marshal escapes <, > and &.
		data, err := json.Marshal(client)
		if err != nil {
			return err
		}
		script := strings.Replace(galleryScript, configPlaceholder, string(data), 1)
		_, err = io.WriteString(w, `<script>`+script+`</script></body></html>`)
		return err
	})
}
