package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conneroisu/iconsprite/internal/config"
	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/services"
	"github.com/conneroisu/iconsprite/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject writes a config file, three icons, and two pages, one of
// which references a missing icon.
func newProject(t *testing.T, configYAML string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, config.FileName), configYAML)
	for _, name := range []string{"home", "search", "user"} {
		writeFile(t, filepath.Join(root, "src", "icons", name+".svg"),
			`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16"><path d="M0 0"/></svg>`)
	}
	writeFile(t, filepath.Join(root, "pages", "index.html"),
		`<html><body><svg><use href="#home"></use></svg></body></html>`)
	writeFile(t, filepath.Join(root, "pages", "about.html"),
		`<html><body><svg><use href="#gone"></use></svg></body></html>`)
	return root
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	if root != "" {
		args = append(args, "--root", root, "--config", filepath.Join(root, config.FileName))
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.GetShortVersion()+"\n", out)

	out, err = execute(t, "", "version", "-f", "json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.GetVersion(), info.Version)

	_, err = execute(t, "", "version", "-f", "xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestConfigCommand(t *testing.T) {
	root := newProject(t, "sprite:\n  prefix: ui\ndevelopment:\n  debounce_ms: 250\n")

	out, err := execute(t, root, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "prefix: ui")
	assert.Contains(t, out, "debounce_ms: 250")
	assert.Contains(t, out, "icon_dir: src/icons")
}

func TestConfigCommandRejectsInvalidConfig(t *testing.T) {
	root := newProject(t, "sprite:\n  prefix: \"1bad\"\n")

	_, err := execute(t, root, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sprite.prefix")
	assert.Contains(t, err.Error(), "hint:")
}

func TestListCommand(t *testing.T) {
	root := newProject(t, "sprite:\n  prefix: i\n")

	out, err := execute(t, root, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "i-home")
	assert.Contains(t, lines[1], "0 0 16 16")
	assert.Contains(t, lines[1], "home.svg")
	assert.Contains(t, out, "3 icon(s)")

	out, err = execute(t, root, "list", "-f", "JSON")
	require.NoError(t, err)
	var report services.IconReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Symbols, 3)
	assert.Equal(t, "i-user", report.Symbols[2].ID)

	out, err = execute(t, root, "list", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "id: i-search")
}

func TestListRejectsUnknownFormat(t *testing.T) {
	root := newProject(t, "")
	_, err := execute(t, root, "list", "-f", "jso")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "json"`)
}

func TestCheckCommand(t *testing.T) {
	root := newProject(t, "")

	out, err := execute(t, root, "check")
	require.ErrorIs(t, err, ErrDanglingReferences)
	assert.Contains(t, out, "Checked 2 page(s) against 3 symbol(s)")
	assert.Contains(t, out, "about.html: #gone has no matching icon")
	assert.Contains(t, out, "Unused icons: [search user]")

	require.NoError(t, os.Remove(filepath.Join(root, "pages", "about.html")))
	out, err = execute(t, root, "check", "-f", "json")
	require.NoError(t, err)
	var report services.CheckReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Pages)
}

func TestBuildCommand(t *testing.T) {
	root := newProject(t, "")

	out, err := execute(t, root, "build", "--tree-shake", "-o", "public")
	require.NoError(t, err)
	assert.Contains(t, out, "Built 2 page(s)")
	assert.Contains(t, out, "Sprite: 3 icon(s)")

	data, err := os.ReadFile(filepath.Join(root, "public", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "<symbol"))

	// flags do not leak into the next run
	out, err = execute(t, root, "build")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(root, "dist", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "<symbol"))
	assert.Contains(t, out, "dist")
}

func TestBuildCommandPathTraversal(t *testing.T) {
	root := newProject(t, "sprite:\n  icon_dir: ../elsewhere\n")
	_, err := execute(t, root, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolves outside the project root")
	assert.Equal(t, ExitSecurity, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"dangling references", fmt.Errorf("%w: 2", ErrDanglingReferences), ExitFailure},
		{"config error", spriteerrors.NewConfigError(spriteerrors.ErrCodeConfigInvalid, "bad prefix"), ExitFailure},
		{"wrapped traversal", fmt.Errorf("plugin: %w", &spriteerrors.PathTraversalError{Input: "..", Resolved: "/", Root: "/project"}), ExitSecurity},
		{"rejected origin", spriteerrors.ErrInvalidOrigin("http://evil.example.com"), ExitSecurity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestValidateFormatWithSuggestion(t *testing.T) {
	formats := []string{"table", "json", "yaml"}
	assert.NoError(t, ValidateFormatWithSuggestion("json", formats))
	assert.NoError(t, ValidateFormatWithSuggestion("YAML", formats))
	assert.ErrorContains(t, ValidateFormatWithSuggestion("tab", formats), `did you mean "table"`)
	assert.ErrorContains(t, ValidateFormatWithSuggestion("xml", formats), "supported: table, json, yaml")
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.Config
		wantInfo  bool
		wantError bool
	}{
		{"quiet by default", config.Config{}, false, false},
		{"verbose", config.Config{Verbose: true}, true, false},
		{"explicit level wins", config.Config{Verbose: true, LogLevel: "error"}, false, false},
		{"explicit info", config.Config{LogLevel: "info"}, true, false},
		{"bad level", config.Config{LogLevel: "loud"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&tt.cfg, &buf)
			if tt.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info(context.Background(), "hello")
			logger.Error(context.Background(), nil, "boom")
			assert.Equal(t, tt.wantInfo, strings.Contains(buf.String(), "hello"))
			assert.Contains(t, buf.String(), "boom")
		})
	}
}
