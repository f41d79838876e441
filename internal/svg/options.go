package svg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadOptionsFile reads optimizer options from a YAML (.yml, .yaml) or
// JSON-with-comments (.json, .jsonc) file.
func LoadOptionsFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading optimizer config: %w", err)
	}

	options := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &options); err != nil {
			return nil, fmt.Errorf("parsing optimizer config %s: %w", path, err)
		}
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &options); err != nil {
			return nil, fmt.Errorf("parsing optimizer config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported optimizer config format %q (use .yml, .yaml, .json or .jsonc)", filepath.Ext(path))
	}

	return options, nil
}

// MergeOptions overlays override onto base and returns a new map.
func MergeOptions(base, override map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func intOption(options map[string]interface{}, key string, def int) (int, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("optimizer option %s: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("optimizer option %s: expected a number, got %T", key, raw)
	}
}

func boolOption(options map[string]interface{}, key string, def bool) (bool, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("optimizer option %s: %w", key, err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("optimizer option %s: expected a boolean, got %T", key, raw)
	}
}

func stringOption(options map[string]interface{}, key, def string) (string, error) {
	raw, ok := options[key]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("optimizer option %s: expected a string, got %T", key, raw)
	}
	return s, nil
}
