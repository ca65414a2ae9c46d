package trials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfigFile reads a JSON or YAML file into a plain nested map. The
// format is selected by extension; .json, .yaml and .yml are supported.
func LoadConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trials: read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var out map[string]any
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("trials: parse %s: %w", path, err)
		}
		return out, nil
	case ".yaml", ".yml":
		var out map[string]any
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("trials: parse %s: %w", path, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("trials: unsupported config file extension %q", filepath.Ext(path))
	}
}

// isConfigFile reports whether name looks like a loadable config file path
// rather than a named config.
func isConfigFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		_, err := os.Stat(name)
		return err == nil
	}
	return false
}
