// Package model defines the shared value types that flow through a Conduit
// pipeline: stage descriptors parsed from YAML, the per-item record shape
// elements consume and produce, field schemas used for coercion and defaults
// merging, and the metrics accumulated while a run executes.
package model

import "time"

// StageDescriptor is one entry of a parsed pipeline: a dotted element id
// plus its raw, already env/arg-resolved parameters. A Fork descriptor
// additionally carries Paths, a mapping from output field name to the
// sub-pipeline that populates it.
type StageDescriptor struct {
	ID     string
	Params map[string]any
	Paths  map[string][]StageDescriptor
}

// Record is the runtime's InputRecord representation: a per-item mapping
// from declared field name to value. Elements with no declared schema
// receive the upstream Record unconverted, without coercion.
type Record map[string]any

// Clone returns a shallow copy of the record. Fields are never deep-merged
// (§4.5), so a shallow copy is sufficient for defaults-merge semantics.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FieldType enumerates the scalar and composite shapes a schema field may
// declare. It drives coercion (internal/coerce) and schema emission (C11).
type FieldType string

const (
	FieldAny    FieldType = "any"
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
	FieldList   FieldType = "list"
	FieldMap    FieldType = "map"
)

// Field describes one member of an element's input schema or constructor
// parameter list.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Template marks a string field whose value is compiled as a C1
	// template rather than taken literally.
	Template bool
	// Expression marks a string field whose value is compiled as a C2
	// expression rather than taken literally.
	Expression bool
	// Default is the field's zero-arg default value when the stage
	// descriptor omits it entirely (distinct from the per-item
	// defaults-merge of constructor-captured values, §4.5).
	Default any
}

// Schema is the ordered field list an element declares for its InputRecord.
// A nil or empty Schema marks an element that accepts raw, unstructured
// items (§3's "may accept raw items verbatim").
type Schema []Field

// Lookup returns the field with the given name, if declared.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the schema's field names in declaration order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// ElementMetrics holds per-stage counters accumulated across a run.
type ElementMetrics struct {
	StageIndex int
	StageID    string
	ItemsIn    int64
	ItemsOut   int64
	Errors     int64
	Elapsed    time.Duration
}

// Throughput returns items produced per second of elapsed wall time.
func (m ElementMetrics) Throughput() float64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return float64(m.ItemsOut) / m.Elapsed.Seconds()
}

// RunStats is the pipeline-wide aggregate collected by the executor (C7)
// and surfaced by both the CLI and the HTTP driver (C10).
type RunStats struct {
	Duration             time.Duration
	TotalItemsProcessed  int64
	ElementMetrics       []ElementMetrics
}

// Throughput returns the run's overall items-processed-per-second.
func (s RunStats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.TotalItemsProcessed) / s.Duration.Seconds()
}
