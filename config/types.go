package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

//go:generate go run ../tools/schema-generator/

// DaemonConfig configures the relic daemon and its filesystem watch session.
type DaemonConfig struct {
	// Root is the directory the daemon watches. Defaults to the directory
	// containing the project config file.
	Root string `yaml:"root,omitempty" toml:"root,omitempty" json:"root,omitempty"`

	// DebounceMs is the window, in milliseconds, over which raw filesystem
	// events are coalesced into a single change batch.
	DebounceMs int `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" json:"debounce_ms,omitempty"`

	// Socket overrides the Unix socket path the daemon listens on.
	Socket string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty"`

	// Ignore lists additional path patterns the watcher never reports,
	// merged with the built-in defaults (VCS metadata, node_modules, ...).
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" json:"ignore,omitempty"`
}

// CacheConfig configures access to the remote cache service.
type CacheConfig struct {
	// URL is the base URL of the remote cache API.
	URL string `yaml:"url,omitempty" toml:"url,omitempty" json:"url,omitempty"`

	// Token is the bearer token used for API authentication. Supports
	// ${ENV_VAR} expansion so secrets can stay out of the file.
	Token string `yaml:"token,omitempty" toml:"token,omitempty" json:"token,omitempty"`

	// TeamID selects the team whose caching status is consulted.
	TeamID string `yaml:"team_id,omitempty" toml:"team_id,omitempty" json:"team_id,omitempty"`
}

// Config is the root of a relic.yml / relic.toml configuration file.
type Config struct {
	// Version is the config schema version.
	Version string `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty"`

	Daemon DaemonConfig `yaml:"daemon,omitempty" toml:"daemon,omitempty" json:"daemon,omitempty"`
	Cache  CacheConfig  `yaml:"cache,omitempty" toml:"cache,omitempty" json:"cache,omitempty"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`

	// path is the file this config was loaded from, if any.
	path string
}

// Path returns the file this configuration was loaded from, or "" when the
// config was synthesized from defaults.
func (c *Config) Path() string {
	return c.path
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded relic.yml into the provided target struct. The target must be a
// pointer. This provides a type-safe way for components to access their
// custom configuration sections.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// Not an error: the target struct simply stays zero-valued.
		return nil
	}

	// Decode the generic map into the strongly-typed target, keyed by the
	// same yaml tags the rest of the config uses.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
