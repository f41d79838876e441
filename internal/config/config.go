// Package config loads iconsprite configuration using Viper: the
// .iconsprite.yml file, ICONSPRITE_ environment variables, and command-line
// flags bound by the cmd package.
//
// Load resolves every option to an explicit value once. Nothing downstream
// consults Viper or the environment again.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/svg"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the project root.
const FileName = ".iconsprite.yml"

// EnvPrefix prefixes environment overrides, e.g. ICONSPRITE_SPRITE_PREFIX.
const EnvPrefix = "ICONSPRITE"

// DefaultExtensions are the source files examined for icon references.
var DefaultExtensions = []string{
	".html", ".htm", ".js", ".mjs", ".ts", ".jsx", ".tsx", ".vue", ".svelte", ".templ", ".go",
}

type Config struct {
	Verbose     bool              `mapstructure:"verbose" yaml:"verbose"`
	LogLevel    string            `mapstructure:"log_level" yaml:"log_level,omitempty"`
	LogFormat   string            `mapstructure:"log_format" yaml:"log_format"`
	Sprite      SpriteConfig      `mapstructure:"sprite" yaml:"sprite"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Optimize    OptimizeConfig    `mapstructure:"optimize" yaml:"optimize"`
	TreeShaking TreeShakingConfig `mapstructure:"tree_shaking" yaml:"tree_shaking"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Pages       PagesConfig       `mapstructure:"pages" yaml:"pages"`
}

type SpriteConfig struct {
	IconDir string `mapstructure:"icon_dir" yaml:"icon_dir"`
	ID      string `mapstructure:"id" yaml:"id"`
	Class   string `mapstructure:"class" yaml:"class"`
	Prefix  string `mapstructure:"prefix" yaml:"prefix"`
}

type DevelopmentConfig struct {
	Watch      bool `mapstructure:"watch" yaml:"watch"`
	DebounceMS int  `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

type OptimizeConfig struct {
	Enabled    bool                   `mapstructure:"enabled" yaml:"enabled"`
	Engine     string                 `mapstructure:"engine" yaml:"engine"`
	Options    map[string]interface{} `mapstructure:"options" yaml:"options"`
	ConfigFile string                 `mapstructure:"config_file" yaml:"config_file,omitempty"`
}

type TreeShakingConfig struct {
	Enabled    bool     `mapstructure:"enabled" yaml:"enabled"`
	PerPage    bool     `mapstructure:"per_page" yaml:"per_page"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	ScanDir    string   `mapstructure:"scan_dir" yaml:"scan_dir"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
}

type PagesConfig struct {
	Dir    string `mapstructure:"dir" yaml:"dir"`
	OutDir string `mapstructure:"out_dir" yaml:"out_dir"`
}

// SetDefaults registers every documented default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("log_format", "text")

	v.SetDefault("sprite.icon_dir", "src/icons")
	v.SetDefault("sprite.id", "icon-sprite")
	v.SetDefault("sprite.class", "svg-sprite")
	v.SetDefault("sprite.prefix", "")

	v.SetDefault("development.watch", true)
	v.SetDefault("development.debounce_ms", 100)

	v.SetDefault("optimize.enabled", false)
	v.SetDefault("optimize.engine", svg.EngineBuiltin)
	v.SetDefault("optimize.options", map[string]interface{}{})
	v.SetDefault("optimize.config_file", "")

	v.SetDefault("tree_shaking.enabled", false)
	v.SetDefault("tree_shaking.per_page", true)
	v.SetDefault("tree_shaking.extensions", DefaultExtensions)
	v.SetDefault("tree_shaking.scan_dir", ".")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.open", false)

	v.SetDefault("pages.dir", "pages")
	v.SetDefault("pages.out_dir", "dist")
}

// Configure points v at the configuration file and environment. An empty
// file means FileName in the working directory.
func Configure(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves the configuration held by the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom resolves, normalizes, and validates the configuration held by v.
// Validation failures are returned with suggestions for every problem.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		cerr := spriteerrors.NewConfigError(spriteerrors.ErrCodeConfigInvalid, "decoding configuration")
		cerr.Cause = err
		return nil, cerr
	}

	// environment overrides arrive as strings
	if v.IsSet("tree_shaking.extensions") {
		config.TreeShaking.Extensions = v.GetStringSlice("tree_shaking.extensions")
	}
	if v.IsSet("server.allowed_origins") {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	config.normalize()

	if result := ValidateConfigWithDetails(&config); result.HasErrors() {
		return nil, result.Err()
	}
	return &config, nil
}

func (c *Config) normalize() {
	c.Optimize.Engine = strings.ToLower(strings.TrimSpace(c.Optimize.Engine))
	if c.Optimize.Options == nil {
		c.Optimize.Options = map[string]interface{}{}
	}

	exts := make([]string, 0, len(c.TreeShaking.Extensions))
	for _, ext := range c.TreeShaking.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.TreeShaking.Extensions = exts
}

// OptimizerOptions returns the inline optimizer options merged over the
// options file, if one is configured. A relative file is resolved against
// projectRoot.
func (c *Config) OptimizerOptions(projectRoot string) (map[string]interface{}, error) {
	if c.Optimize.ConfigFile == "" {
		return svg.MergeOptions(nil, c.Optimize.Options), nil
	}
	path := c.Optimize.ConfigFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectRoot, path)
	}
	fileOptions, err := svg.LoadOptionsFile(path)
	if err != nil {
		return nil, fmt.Errorf("optimize.config_file: %w", err)
	}
	return svg.MergeOptions(fileOptions, c.Optimize.Options), nil
}

// Address returns the dev server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
