package metadata

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const bindingSchemaJSON = `{
  "type": "object",
  "required": ["type", "direction"],
  "properties": {
    "name": {"type": "string"},
    "type": {"type": "string", "minLength": 1},
    "direction": {"type": "string", "pattern": "^(?i)(in|out|inout)$"},
    "dataType": {"type": "string", "pattern": "^(?i)(undefined|string|binary|stream)$"},
    "cardinality": {"type": "string", "pattern": "^(?i)(one|many)$"},
    "properties": {"type": "object"}
  }
}`

const functionsMetadataSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "bindings"],
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "scriptFile": {"type": "string"},
      "entryPoint": {"type": "string"},
      "language": {"type": "string"},
      "bindings": {"type": "array", "items": {"type": "object"}},
      "retry": {
        "type": "object",
        "properties": {
          "strategy": {"type": "string", "pattern": "^(?i)(fixedDelay|exponentialBackoff)$"},
          "maxRetryCount": {"type": "integer"},
          "delayInterval": {"type": "string"},
          "minimumInterval": {"type": "string"},
          "maximumInterval": {"type": "string"}
        }
      }
    }
  }
}`

var (
	bindingSchema           = mustSchema(bindingSchemaJSON)
	functionsMetadataSchema = mustSchema(functionsMetadataSchemaJSON)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("metadata: invalid embedded schema: %v", err))
	}
	return schema
}

func validateBinding(raw []byte) error {
	return validateAgainst(bindingSchema, raw, "Bindings must declare a direction and type.")
}

func validateFunctionsMetadata(raw []byte) error {
	return validateAgainst(functionsMetadataSchema, raw, "invalid functions.metadata")
}

func validateAgainst(schema *gojsonschema.Schema, raw []byte, summary string) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", summary, err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}
	return fmt.Errorf("%s: %s", summary, strings.Join(details, "; "))
}
