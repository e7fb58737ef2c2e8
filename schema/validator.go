// Package schema validates relic configuration against the embedded JSON
// Schema.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relictools/relic/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed relic.embedded.schema.json
var embeddedSchemaData []byte

// Validator validates configuration against the embedded JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new schema validator, loading the embedded schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("relic.json", bytes.NewReader(embeddedSchemaData)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to add embedded schema resource")
	}

	schema, err := compiler.Compile("relic.json")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to compile embedded schema")
	}

	return &Validator{schema: schema}, nil
}

// Validate validates configuration data against the schema. It accepts any
// struct that can be marshaled to JSON.
func (v *Validator) Validate(configData interface{}) error {
	// Round-trip through JSON so the validator sees plain maps rather than
	// Go structs.
	jsonData, err := json.Marshal(configData)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal config for validation")
	}

	var dataToValidate interface{}
	if err := json.Unmarshal(jsonData, &dataToValidate); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal config for validation")
	}

	if err := v.schema.Validate(dataToValidate); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			var messages []string
			collectErrors(validationErr, &messages)
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("schema validation failed:\n%s", strings.Join(messages, "\n")))
		}
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}

	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
