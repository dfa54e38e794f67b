package schema

import (
	"testing"

	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
)

func TestGenerate_OneBranchPerRegisteredElement(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Descriptor{ID: "test.A", New: func(map[string]any) (registry.Element, error) { return nil, nil }})
	reg.Register(registry.Descriptor{ID: "test.B", New: func(map[string]any) (registry.Element, error) { return nil, nil }})

	doc := Generate(reg)
	branches, ok := doc["oneOf"].([]any)
	if !ok {
		t.Fatalf("expected oneOf to be a slice, got %T", doc["oneOf"])
	}
	if len(branches) != 2 {
		t.Errorf("expected 2 oneOf branches for 2 registered elements, got %d", len(branches))
	}
}

func TestElementSchema_RequiredCtorParamsListed(t *testing.T) {
	d := registry.Descriptor{
		ID: "test.WithParams",
		CtorParams: model.Schema{
			{Name: "path", Type: model.FieldString, Required: true},
			{Name: "timeout", Type: model.FieldFloat},
		},
	}

	got := elementSchema(d)
	params := got["properties"].(map[string]any)["params"].(map[string]any)
	required := params["required"].([]any)
	if len(required) != 1 || required[0] != "path" {
		t.Errorf("expected only %q to be required, got %v", "path", required)
	}

	props := params["properties"].(map[string]any)
	if props["timeout"].(map[string]any)["type"] != "number" {
		t.Errorf("expected a float field to map to JSON Schema %q", "number")
	}
}

func TestJSONType_MapsEveryFieldType(t *testing.T) {
	cases := map[model.FieldType]string{
		model.FieldString: "string",
		model.FieldInt:    "integer",
		model.FieldFloat:  "number",
		model.FieldBool:   "boolean",
		model.FieldList:   "array",
		model.FieldMap:    "object",
		model.FieldAny:    "any",
	}
	for in, want := range cases {
		if got := jsonType(in); got != want {
			t.Errorf("jsonType(%q) = %q, want %q", in, got, want)
		}
	}
}
