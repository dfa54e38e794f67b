// Package merge implements C5, the defaults-merger: given an element's
// constructor-captured defaults D and a per-item partial InputRecord I,
// produce M where each field is I[f] if present, else D[f] if present,
// else left unset. Replacement is always whole-field, never a deep merge
// (§4.5, §8 universal property 2).
//
// Grounded on the original's PipelineElement.apply_defaults, which walks
// the dataclass instance's None fields and fills them from constructor-
// captured defaults (_examples/original_source/src/conduit/pipelineElement.py).
package merge

import "github.com/conduit-run/conduit/internal/model"

// Merge returns a new record with every field of item present, falling
// back field-by-field to defaults. Neither input is mutated.
func Merge(defaults, item model.Record) model.Record {
	out := make(model.Record, len(defaults)+len(item))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range item {
		// A present-but-nil field still counts as "present" per the
		// defaults-merge law (§8 property 2: "I[f] if present"), so only
		// missing keys fall through to the default.
		out[k] = v
	}
	return out
}
