package inject

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/conneroisu/iconsprite/internal/build"
)

// SpriteComponent renders the sprite container for pages built with templ.
// Place it first inside <body>.
func SpriteComponent(sprite *build.Sprite) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, SpriteTag(sprite).HTML())
		return err
	})
}

// ClientScriptComponent renders the live-update client script.
func ClientScriptComponent(cfg ClientConfig) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, ClientScriptTag(cfg).HTML())
		return err
	})
}
