package llms

import (
	"github.com/invopop/jsonschema"
)

// SchemaFor derives a JSON schema map from a Go value. The result is
// suitable for StructuredOutputConfig.Schema and for tool parameter
// definitions.
func SchemaFor(v any) (map[string]interface{}, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	return schemaToMap(reflector.Reflect(v))
}
