package svg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean markup passes through",
			input:    `<path d="M0 0h24v24H0z" fill="none"/>`,
			expected: `<path d="M0 0h24v24H0z" fill="none"/>`,
		},
		{
			name:     "script element with content",
			input:    `<g><script type="text/javascript">alert(1)</script><path d="M1"/></g>`,
			expected: `<g><path d="M1"/></g>`,
		},
		{
			name:     "multiline script, mixed case",
			input:    "<SCRIPT>\nfetch('/x')\n</Script ><circle r=\"2\"/>",
			expected: `<circle r="2"/>`,
		},
		{
			name:     "self-closing script",
			input:    `<script href="evil.js"/><rect/>`,
			expected: `<rect/>`,
		},
		{
			name:     "double quoted event handler",
			input:    `<rect onclick="alert(1)" width="4"/>`,
			expected: `<rect width="4"/>`,
		},
		{
			name:     "single quoted and unquoted handlers",
			input:    `<rect onload='x()' onmouseover=y() width="4"/>`,
			expected: `<rect width="4"/>`,
		},
		{
			name:     "handler-like text is kept",
			input:    `<text x="1"> once=1</text>`,
			expected: `<text x="1"> once=1</text>`,
		},
		{
			name:     "handler after text in a later tag",
			input:    `<text> once=1</text><rect onclick="x()" onfocus=y width="2"/>`,
			expected: `<text> once=1</text><rect width="2"/>`,
		},
		{
			name:     "handler in a nested element",
			input:    `<g id="a"><circle r="2" ONLOAD='z()'/></g>`,
			expected: `<g id="a"><circle r="2"/></g>`,
		},
		{
			name:     "javascript href",
			input:    `<a href="javascript:alert(1)"><path/></a>`,
			expected: `<a><path/></a>`,
		},
		{
			name:     "javascript xlink href with spaces",
			input:    `<a xlink:href=" JavaScript:void(0)"><path/></a>`,
			expected: `<a><path/></a>`,
		},
		{
			name:     "html data url",
			input:    `<a href="data:text/html;base64,PHNjcmlwdD4="><path/></a>`,
			expected: `<a><path/></a>`,
		},
		{
			name:     "image data url is kept",
			input:    `<image href="data:image/png;base64,AAAA"/>`,
			expected: `<image href="data:image/png;base64,AAAA"/>`,
		},
		{
			name:     "foreignObject with content",
			input:    `<foreignObject width="10"><div>html</div></foreignObject><path/>`,
			expected: `<path/>`,
		},
		{
			name:     "fragment reference is kept",
			input:    `<use href="#shape"/>`,
			expected: `<use href="#shape"/>`,
		},
		{
			name:     "removal exposes a new script tag",
			input:    `<scr<script></script>ipt>alert(1)</script><path/>`,
			expected: `alert(1)<path/>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, Sanitize(got))
		})
	}
}

func TestExtractViewBox(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		expected string
		found    bool
	}{
		{"present", `<svg viewBox="0 0 16 16"><path/></svg>`, "0 0 16 16", true},
		{"single quotes and extra whitespace", "<svg xmlns='x' viewBox=' 0  0\t32 32 '>", "0 0 32 32", true},
		{"lowercase attribute", `<svg viewbox="0 0 20 20">`, "0 0 20 20", true},
		{"absent", `<svg width="24"><path/></svg>`, DefaultViewBox, false},
		{"blank", `<svg viewBox=""><path/></svg>`, DefaultViewBox, false},
		{"only on child", `<svg><svg viewBox="1 1 1 1"/></svg>`, "1 1 1 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ExtractViewBox(tt.markup)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestExtractInner(t *testing.T) {
	inner, ok := ExtractInner("<?xml version=\"1.0\"?>\n<svg viewBox=\"0 0 24 24\">\n  <path d=\"M1\"/>\n</svg>\n")
	require.True(t, ok)
	assert.Equal(t, `<path d="M1"/>`, inner)

	inner, ok = ExtractInner(`<svg><g><svg><rect/></svg></g></svg>`)
	require.True(t, ok)
	assert.Equal(t, `<g><svg><rect/></svg></g>`, inner)

	_, ok = ExtractInner(`<svg><path d="M1"/>`)
	assert.False(t, ok)

	_, ok = ExtractInner(`<svg/>`)
	assert.False(t, ok)
}

func TestHasRoot(t *testing.T) {
	assert.True(t, HasRoot(`<SVG viewBox="0 0 1 1"></SVG>`))
	assert.True(t, HasRoot("<svg\nwidth=\"1\">"))
	assert.False(t, HasRoot(`<svgx>`))
	assert.False(t, HasRoot(`<html><body></body></html>`))
}

func TestWrap(t *testing.T) {
	doc := Wrap("0 0 10 10", `<rect/>`)
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect/></svg>`, doc)

	viewBox, _ := ExtractViewBox(doc)
	inner, ok := ExtractInner(doc)
	require.True(t, ok)
	assert.Equal(t, "0 0 10 10", viewBox)
	assert.Equal(t, `<rect/>`, inner)
}

func TestMinifyOptimizer(t *testing.T) {
	opt, err := NewMinifyOptimizer(map[string]interface{}{"precision": 3})
	require.NoError(t, err)
	assert.True(t, opt.Available())
	assert.Equal(t, EngineBuiltin, opt.Name())

	doc := Wrap("0 0 24 24", `
		<!-- outline -->
		<path   d="M 10.00000 10.00000 L 20.00000 20.00000"   fill="none" />
	`)
	out, err := opt.Optimize(context.Background(), doc)
	require.NoError(t, err)

	assert.Less(t, len(out), len(doc))
	assert.NotContains(t, out, "outline")
	inner, ok := ExtractInner(out)
	require.True(t, ok)
	assert.Contains(t, inner, "<path")
}

func TestMinifyOptimizerBadOption(t *testing.T) {
	_, err := NewMinifyOptimizer(map[string]interface{}{"precision": []int{1}})
	assert.Error(t, err)

	_, err = NewMinifyOptimizer(map[string]interface{}{"keep_comments": "maybe"})
	assert.Error(t, err)
}

func TestCommandOptimizerArgs(t *testing.T) {
	opt, err := NewCommandOptimizer("svgo", map[string]interface{}{
		"config":    "svgo.config.js",
		"multipass": true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"--input", "-", "--output", "-", "--config", "svgo.config.js", "--multipass"}, opt.args)
}

func TestCommandOptimizerFailure(t *testing.T) {
	opt, err := NewCommandOptimizer(filepath.Join(t.TempDir(), "no-such-svgo"), nil)
	require.NoError(t, err)

	_, err = opt.Optimize(context.Background(), Wrap(DefaultViewBox, "<path/>"))
	assert.Error(t, err)
}

func TestResolverUnavailableIsIdentity(t *testing.T) {
	r := NewResolver(EngineSVGO, nil, nil)
	lookups := 0
	r.lookPath = func(string) (string, error) {
		lookups++
		return "", errors.New("not found")
	}

	first := r.Optimizer(context.Background())
	second := r.Optimizer(context.Background())

	assert.False(t, first.Available())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, lookups)

	out, err := first.Optimize(context.Background(), "<svg></svg>")
	require.NoError(t, err)
	assert.Equal(t, "<svg></svg>", out)
}

func TestResolverEngines(t *testing.T) {
	builtin := NewResolver("", nil, nil).Optimizer(context.Background())
	assert.Equal(t, EngineBuiltin, builtin.Name())

	unknown := NewResolver("magic", nil, nil).Optimizer(context.Background())
	assert.False(t, unknown.Available())

	r := NewResolver(EngineSVGO, nil, nil)
	r.lookPath = func(string) (string, error) { return "/usr/bin/svgo", nil }
	assert.Equal(t, EngineSVGO, r.Optimizer(context.Background()).Name())

	static := NewStaticResolver(Unavailable("test"))
	assert.False(t, static.Optimizer(context.Background()).Available())
}

func TestLoadOptionsFile(t *testing.T) {
	dir := t.TempDir()

	jsoncPath := filepath.Join(dir, "optimizer.jsonc")
	require.NoError(t, os.WriteFile(jsoncPath, []byte(`{
		// digits kept after minification
		"precision": 2,
		"keep_comments": false,
	}`), 0o644))

	yamlPath := filepath.Join(dir, "optimizer.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("precision: 4\nmultipass: true\n"), 0o644))

	fromJSON, err := LoadOptionsFile(jsoncPath)
	require.NoError(t, err)
	assert.Equal(t, float64(2), fromJSON["precision"])
	assert.Equal(t, false, fromJSON["keep_comments"])

	fromYAML, err := LoadOptionsFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 4, fromYAML["precision"])
	assert.Equal(t, true, fromYAML["multipass"])

	_, err = LoadOptionsFile(filepath.Join(dir, "optimizer.toml"))
	assert.Error(t, err)

	tomlPath := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("x = 1"), 0o644))
	_, err = LoadOptionsFile(tomlPath)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported"))
}

func TestMergeOptions(t *testing.T) {
	base := map[string]interface{}{"precision": 2, "multipass": false}
	merged := MergeOptions(base, map[string]interface{}{"multipass": true})

	assert.Equal(t, map[string]interface{}{"precision": 2, "multipass": true}, merged)
	assert.Equal(t, false, base["multipass"])
}
