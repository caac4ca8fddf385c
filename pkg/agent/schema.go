package agent

import (
	"sort"

	"github.com/chopralab/sciborg/pkg/param"
)

// commandSchema converts a command's parameter specs into the JSON
// schema advertised to the model.
func commandSchema(specs map[string]*param.Spec) map[string]any {
	properties := make(map[string]any, len(specs))
	var required []string

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := specs[name]
		properties[name] = specSchema(spec)
		if !spec.IsOptional && spec.Default == nil {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func specSchema(spec *param.Spec) map[string]any {
	element := map[string]any{
		"type": jsonType(spec.DataType),
	}
	if len(spec.AllowedValues) > 0 {
		element["enum"] = spec.AllowedValues
	}
	if spec.LowerLimit != nil {
		element["minimum"] = spec.LowerLimit
	}
	if spec.UpperLimit != nil {
		element["maximum"] = spec.UpperLimit
	}

	var schema map[string]any
	if spec.IsList {
		schema = map[string]any{
			"type":  "array",
			"items": element,
		}
	} else {
		schema = element
	}

	if spec.Desc != "" {
		schema["description"] = spec.Desc
	}
	if spec.Default != nil {
		schema["default"] = spec.Default
	}
	return schema
}

func jsonType(t param.DataType) string {
	switch t {
	case param.TypeInt:
		return "integer"
	case param.TypeFloat:
		return "number"
	case param.TypeBool:
		return "boolean"
	default:
		return "string"
	}
}
