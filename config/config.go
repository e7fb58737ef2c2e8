// Package config loads and merges relic configuration files.
//
// Configuration is resolved hierarchically:
//  1. Global config (~/.config/relic/relic.yml) - base layer
//  2. Project config (relic.yml or relic.toml, found by walking up) - overrides global
//  3. Local override (relic.override.yml next to the project config) - overrides all
//
// ${ENV_VAR} references in any file are expanded before parsing.
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/relictools/relic/errors"
	"github.com/relictools/relic/pkg/paths"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// ConfigFileNames lists recognized project config file names, in priority order.
var ConfigFileNames = []string{"relic.yml", "relic.yaml", "relic.toml"}

// Load reads and parses a single relic configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// LoadDefault finds and loads the configuration with hierarchical merging,
// starting from the current working directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the
// given directory.
func LoadFrom(startDir string) (*Config, error) {
	projectPath, err := FindConfigFile(startDir)
	if err != nil {
		return nil, err
	}

	var final *Config

	// 1. Global config is optional.
	if globalDir := paths.ConfigDir(); globalDir != "" {
		for _, name := range ConfigFileNames {
			globalPath := filepath.Join(globalDir, name)
			if _, statErr := os.Stat(globalPath); statErr == nil {
				if globalCfg, loadErr := Load(globalPath); loadErr == nil {
					final = globalCfg
				}
				break
			}
		}
	}

	// 2. Project config is required.
	projectCfg, err := Load(projectPath)
	if err != nil {
		return nil, err
	}
	final = merge(final, projectCfg)

	// 3. Local override is optional.
	overridePath := filepath.Join(filepath.Dir(projectPath), "relic.override.yml")
	if _, statErr := os.Stat(overridePath); statErr == nil {
		if overrideCfg, loadErr := Load(overridePath); loadErr == nil {
			final = merge(final, overrideCfg)
		}
	}

	final.path = projectPath
	applyDefaults(final)
	return final, nil
}

// FindConfigFile walks up from startDir looking for a project config file.
func FindConfigFile(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to resolve start directory")
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.ConfigNotFound(filepath.Join(startDir, ConfigFileNames[0]))
		}
		dir = parent
	}
}

// parse decodes config bytes, dispatching on the file extension.
func parse(data []byte, path string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML config").
				WithDetail("path", path)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML config").
				WithDetail("path", path)
		}
	}
	return &cfg, nil
}

// merge overlays overlay onto base. Scalar fields in overlay win when set;
// extension maps are merged key-by-key with overlay precedence.
func merge(base, overlay *Config) *Config {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}

	merged := *base

	if overlay.Version != "" {
		merged.Version = overlay.Version
	}
	if overlay.Daemon.Root != "" {
		merged.Daemon.Root = overlay.Daemon.Root
	}
	if overlay.Daemon.DebounceMs != 0 {
		merged.Daemon.DebounceMs = overlay.Daemon.DebounceMs
	}
	if overlay.Daemon.Socket != "" {
		merged.Daemon.Socket = overlay.Daemon.Socket
	}
	if len(overlay.Daemon.Ignore) > 0 {
		merged.Daemon.Ignore = append(append([]string{}, base.Daemon.Ignore...), overlay.Daemon.Ignore...)
	}
	if overlay.Cache.URL != "" {
		merged.Cache.URL = overlay.Cache.URL
	}
	if overlay.Cache.Token != "" {
		merged.Cache.Token = overlay.Cache.Token
	}
	if overlay.Cache.TeamID != "" {
		merged.Cache.TeamID = overlay.Cache.TeamID
	}

	if len(overlay.Extensions) > 0 {
		extensions := make(map[string]interface{}, len(base.Extensions)+len(overlay.Extensions))
		for k, v := range base.Extensions {
			extensions[k] = v
		}
		for k, v := range overlay.Extensions {
			extensions[k] = v
		}
		merged.Extensions = extensions
	}

	return &merged
}

// applyDefaults fills in derived defaults after merging.
func applyDefaults(cfg *Config) {
	if cfg.Daemon.Root == "" && cfg.path != "" {
		cfg.Daemon.Root = filepath.Dir(cfg.path)
	}
	if cfg.Daemon.DebounceMs <= 0 {
		cfg.Daemon.DebounceMs = 10
	}
	if cfg.Daemon.Socket == "" {
		cfg.Daemon.Socket = paths.SocketPath()
	}
}

// expandEnvVars replaces ${VAR} references with their environment values.
// Unset variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
