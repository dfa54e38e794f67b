// Package coerce implements the InputRecord coercion rules of §3: for each
// upstream item the runtime converts it into the shape the next element
// declares, before the defaults-merger (internal/merge) runs.
//
// Grounded on the original's Pipeline._convert_item_to_type
// (_examples/original_source/src/conduit/pipeline.py): direct match first,
// then dict-based filtered-field construction, falling back to wrapping a
// scalar as {"input": item} when the schema has exactly one field.
package coerce

import (
	"github.com/conduit-run/conduit/internal/model"
)

// ToRecord converts an arbitrary upstream value into a model.Record shaped
// by schema. A nil/empty schema means the element accepts raw items
// verbatim (§3), in which case item is returned unconverted wrapped as
// Record{"input": item} only if the caller needs a Record at all -- for
// schema-less elements the executor should bypass coercion entirely and
// pass the item through untouched; ToRecord is only invoked when schema is
// non-empty.
func ToRecord(item any, schema model.Schema) model.Record {
	if len(schema) == 0 {
		if r, ok := item.(model.Record); ok {
			return r
		}
		return model.Record{"input": item}
	}

	// Already a matching Record: keys are matched against declared field
	// names as-is (§3 "already a mapping" rule).
	if r, ok := item.(model.Record); ok {
		return filterKnownFields(r, schema)
	}
	if m, ok := item.(map[string]any); ok {
		return filterKnownFields(model.Record(m), schema)
	}

	// Exactly one declared field and a scalar/other upstream item: bind
	// it to that field (§3 "bound to that field").
	if len(schema) == 1 {
		return model.Record{schema[0].Name: item}
	}

	// Multi-field schema, non-mapping upstream item, and no direct match:
	// as a last resort, bind to a field literally named "input" if one is
	// declared (mirrors the original's fallback of wrapping as {'input':
	// item} when no dataclass field matched anything else).
	if _, ok := schema.Lookup("input"); ok {
		return model.Record{"input": item}
	}
	return model.Record{}
}

func filterKnownFields(r model.Record, schema model.Schema) model.Record {
	out := make(model.Record, len(schema))
	for _, f := range schema {
		if v, ok := r[f.Name]; ok {
			out[f.Name] = v
		}
	}
	if len(out) == 0 {
		if _, ok := schema.Lookup("input"); ok {
			out["input"] = r
		}
	}
	return out
}
