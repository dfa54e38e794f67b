// Package schema implements C11: producing a single JSON Schema document
// describing every registered element, one oneOf branch per element,
// grounded on the original's schema_generator.py per-class introspection
// walk (_examples/original_source/src/conduit/schema_generator.py),
// re-expressed over the registry's static Descriptor data instead of
// runtime reflection.
package schema

import (
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
)

// Generate walks every Descriptor registered in reg and returns a JSON
// Schema document (as a plain map, marshalable via encoding/json) with one
// oneOf branch per element id.
func Generate(reg *registry.Registry) map[string]any {
	descs := reg.All()
	branches := make([]any, 0, len(descs))
	for _, d := range descs {
		branches = append(branches, elementSchema(d))
	}
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "Conduit pipeline stage",
		"type":    "object",
		"oneOf":   branches,
	}
}

func elementSchema(d registry.Descriptor) map[string]any {
	props := map[string]any{
		"id": map[string]any{"const": d.ID},
	}
	if len(d.CtorParams) > 0 {
		props["params"] = map[string]any{
			"type":       "object",
			"properties": fieldProps(d.CtorParams),
			"required":   requiredNames(d.CtorParams),
		}
	}
	return map[string]any{
		"title":       d.ID,
		"description": d.Summary,
		"type":        "object",
		"required":    []any{"id"},
		"properties":  props,
	}
}

func fieldProps(fields model.Schema) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		prop := map[string]any{"type": jsonType(f.Type)}
		if f.Default != nil {
			prop["default"] = f.Default
		}
		if f.Template {
			prop["x-conduit-template"] = true
		}
		if f.Expression {
			prop["x-conduit-expression"] = true
		}
		out[f.Name] = prop
	}
	return out
}

func requiredNames(fields model.Schema) []any {
	var out []any
	for _, f := range fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func jsonType(t model.FieldType) string {
	switch t {
	case model.FieldString:
		return "string"
	case model.FieldInt:
		return "integer"
	case model.FieldFloat:
		return "number"
	case model.FieldBool:
		return "boolean"
	case model.FieldList:
		return "array"
	case model.FieldMap:
		return "object"
	default:
		return "any"
	}
}
