package config

import (
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"

	spriteerrors "github.com/conneroisu/iconsprite/internal/errors"
	"github.com/conneroisu/iconsprite/internal/svg"
)

const maxDebounceMS = 10000

var (
	elementIDPattern = regexp.MustCompile(`^[A-Za-z][\w:.-]*$`)
	classPattern     = regexp.MustCompile(`^-?[_A-Za-z][\w-]*$`)
	prefixPattern    = regexp.MustCompile(`^[A-Za-z][\w-]*$`)
)

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   spriteerrors.ValidationErrorCollection
	Warnings []*spriteerrors.FieldValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return vr.Errors.HasErrors()
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Err returns the errors as one error, or nil.
func (vr *ValidationResult) Err() error {
	return vr.Errors.ErrOrNil()
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if vr.HasErrors() {
		builder.WriteString("❌ Validation Errors:\n")
		for _, err := range vr.Errors.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %v\n", err.Field(), err))
			for _, suggestion := range err.Suggestions() {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if vr.HasWarnings() {
		builder.WriteString("⚠️  Validation Warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field(), warning.ErrorMessage))
			for _, suggestion := range warning.Suggestions() {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) warn(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, spriteerrors.NewFieldValidationError(field, value, message, suggestions...))
}

// ValidateConfigWithDetails checks every option and collects errors and
// warnings with suggestions.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateSpriteConfig(&config.Sprite, result)
	validateDevelopmentConfig(&config.Development, result)
	validateOptimizeConfig(&config.Optimize, result)
	validateTreeShakingConfig(config, result)
	validateServerConfig(&config.Server, result)
	validatePagesConfig(&config.Pages, result)

	if config.LogFormat != "" && config.LogFormat != "text" && config.LogFormat != "json" {
		result.Errors.AddField("log_format", config.LogFormat, "log format must be 'text' or 'json'",
			"log_format: text",
			"log_format: json")
	}

	return result
}

func validateSpriteConfig(config *SpriteConfig, result *ValidationResult) {
	if strings.TrimSpace(config.IconDir) == "" {
		result.Errors.AddField("sprite.icon_dir", config.IconDir, "icon directory cannot be empty",
			"sprite.icon_dir: src/icons",
			"sprite.icon_dir: assets/svg")
	} else if strings.ContainsRune(config.IconDir, 0) {
		result.Errors.AddField("sprite.icon_dir", config.IconDir, "icon directory contains a null byte",
			"Use a plain relative path such as src/icons")
	}

	if !elementIDPattern.MatchString(config.ID) {
		result.Errors.AddField("sprite.id", config.ID, "sprite id must start with a letter and contain only letters, digits, '-', '_', ':' or '.'",
			"sprite.id: icon-sprite",
			"sprite.id: app-icons")
	}

	for _, class := range strings.Fields(config.Class) {
		if !classPattern.MatchString(class) {
			result.Errors.AddField("sprite.class", config.Class, fmt.Sprintf("'%s' is not a valid class name", class),
				"sprite.class: svg-sprite",
				"Separate multiple classes with spaces")
			break
		}
	}

	if config.Prefix != "" && !prefixPattern.MatchString(config.Prefix) {
		result.Errors.AddField("sprite.prefix", config.Prefix, "prefix must start with a letter and contain only letters, digits, '-' or '_'",
			"sprite.prefix: icon",
			"Leave the prefix empty to use bare file names")
	}
}

func validateDevelopmentConfig(config *DevelopmentConfig, result *ValidationResult) {
	switch {
	case config.DebounceMS < 0 || config.DebounceMS > maxDebounceMS:
		result.Errors.AddField("development.debounce_ms", config.DebounceMS,
			fmt.Sprintf("debounce must be between 0 and %d milliseconds", maxDebounceMS),
			"development.debounce_ms: 100")
	case config.DebounceMS > 2000:
		result.warn("development.debounce_ms", config.DebounceMS, "long debounce delays make live updates feel slow",
			"Values between 50 and 300 work well for most editors")
	}
}

func validateOptimizeConfig(config *OptimizeConfig, result *ValidationResult) {
	switch config.Engine {
	case svg.EngineBuiltin, svg.EngineSVGO:
	default:
		result.Errors.AddField("optimize.engine", config.Engine, fmt.Sprintf("unknown optimizer engine '%s'", config.Engine),
			"optimize.engine: builtin",
			"optimize.engine: svgo (requires the svgo command on PATH)")
	}

	if config.ConfigFile != "" {
		switch strings.ToLower(filepath.Ext(config.ConfigFile)) {
		case ".json", ".jsonc", ".yml", ".yaml":
		default:
			result.Errors.AddField("optimize.config_file", config.ConfigFile, "optimizer config must be JSON, JSONC or YAML",
				"optimize.config_file: svgo.config.json",
				"optimize.config_file: optimize.yml")
		}
	}

	if !config.Enabled && (len(config.Options) > 0 || config.ConfigFile != "") {
		result.warn("optimize.enabled", config.Enabled, "optimizer options are set but optimization is disabled",
			"optimize.enabled: true")
	}
}

func validateTreeShakingConfig(config *Config, result *ValidationResult) {
	ts := &config.TreeShaking
	if ts.Enabled && len(ts.Extensions) == 0 {
		result.Errors.AddField("tree_shaking.extensions", ts.Extensions, "tree-shaking needs at least one file extension to scan",
			"tree_shaking.extensions: [.html, .js, .ts]")
	}
	if ts.Enabled && !ts.PerPage && strings.TrimSpace(ts.ScanDir) == "" {
		result.Errors.AddField("tree_shaking.scan_dir", ts.ScanDir, "project tree-shaking needs a directory to scan",
			"tree_shaking.scan_dir: .")
	}
}

func validateServerConfig(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.Errors.AddField("server.port", config.Port, fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access",
			"Common development ports: 3000, 8080, 8000, 3001",
			"Port 0 allows system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.warn("server.port", config.Port, "port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.Errors.AddField("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}
}

func validatePagesConfig(config *PagesConfig, result *ValidationResult) {
	if config.Dir == "" || config.OutDir == "" {
		result.Errors.AddField("pages", config, "pages.dir and pages.out_dir are required",
			"pages.dir: pages",
			"pages.out_dir: dist")
		return
	}
	if filepath.Clean(config.Dir) == filepath.Clean(config.OutDir) {
		result.Errors.AddField("pages.out_dir", config.OutDir, "output directory must differ from the pages directory",
			"pages.out_dir: dist")
	}
}

// validateHostname validates hostname format
func validateHostname(hostname string) error {
	if net.ParseIP(hostname) != nil {
		return nil
	}
	if len(hostname) > 253 {
		return fmt.Errorf("hostname too long")
	}
	for _, label := range strings.Split(hostname, ".") {
		if label == "" || len(label) > 63 {
			return fmt.Errorf("invalid hostname '%s'", hostname)
		}
		for i, r := range label {
			alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !alnum && (r != '-' || i == 0 || i == len(label)-1) {
				return fmt.Errorf("invalid hostname '%s'", hostname)
			}
		}
	}
	return nil
}
