package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the base JSON Schema for the core relic
// configuration. It reflects the Config struct from types.go but excludes the
// free-form Extensions field.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		// Unknown top-level keys are extension config and validated by
		// whichever tool owns them, not by the base schema.
		AllowAdditionalProperties: true,
		// Expand struct references instead of using $ref for cleaner base schema.
		ExpandedStruct: true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	// A reduced struct so the inline Extensions map never reaches the
	// reflector.
	type BaseConfig struct {
		Version string        `yaml:"version" jsonschema:"required,description=Configuration version (e.g. '1')"`
		Daemon  *DaemonConfig `yaml:"daemon,omitempty" jsonschema:"description=Daemon watch settings"`
		Cache   *CacheConfig  `yaml:"cache,omitempty" jsonschema:"description=Remote cache service settings"`
	}

	schema := r.Reflect(&BaseConfig{})
	schema.Title = "Relic Configuration"
	schema.Description = "Base schema for relic.yml properties."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return json.MarshalIndent(schema, "", "  ")
}
