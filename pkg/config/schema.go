package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaVersion is the JSON Schema draft the generated schema declares.
const SchemaVersion = "https://json-schema.org/draft/2020-12/schema"

// Schema describes the configuration file. Property names follow the YAML
// keys, so editors can validate and complete config.yaml with it.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		FieldNameTag:              "yaml",
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := r.Reflect(&Config{})
	schema.Version = SchemaVersion
	schema.Title = "ftlsim configuration"
	schema.Description = "Configuration file of the ftlsim GC simulator"
	return schema
}

// SchemaJSON renders Schema as indented JSON.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return data, nil
}
