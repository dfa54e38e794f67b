// Package numeric implements the built-in "Numerics" elements: Numpy, Eval
// (§4.9), grounded on gonum.org/v1/gonum's stat/floats packages as the
// ecosystem-standard numeric library named in the DOMAIN STACK.
package numeric

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/conduit-run/conduit/internal/expreval"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:      "conduit.Numpy",
		Summary: "apply a numeric reduction/operation over a list item",
		CtorParams: model.Schema{
			{Name: "operation", Type: model.FieldString, Required: true},
			{Name: "axis", Type: model.FieldInt},
			{Name: "dtype", Type: model.FieldString},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldList}},
		New:         newNumpy,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Eval",
		Summary: "evaluate an expression over the item",
		CtorParams: model.Schema{
			{Name: "expression", Type: model.FieldString, Required: true, Expression: true},
			{Name: "globals", Type: model.FieldMap},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newEval,
	})
}

// Numpy applies a named numeric operation to a list item, grounded on
// gonum's stat/floats packages for mean/std/sum/min/max, mirroring the
// original's thin wrapper around numpy ufuncs
// (_examples/original_source/src/conduit/elements/numpy.py).
type Numpy struct {
	operation string
}

func newNumpy(args map[string]any) (registry.Element, error) {
	op, _ := args["operation"].(string)
	if op == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Numpy requires a non-empty operation")
	}
	return &Numpy{operation: op}, nil
}

func (e *Numpy) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		values, err := toFloatSlice(rec["input"])
		if err != nil {
			return runerr.Wrap(runerr.KindSchemaMismatch, err, "Numpy input")
		}
		result, err := e.apply(values)
		if err != nil {
			return runerr.Wrap(runerr.KindItemError, err, "Numpy operation %q", e.operation)
		}
		select {
		case out <- model.Record{"input": result}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (e *Numpy) apply(values []float64) (any, error) {
	switch e.operation {
	case "mean":
		return stat.Mean(values, nil), nil
	case "std":
		return stat.StdDev(values, nil), nil
	case "sum":
		return floats.Sum(values), nil
	case "min":
		return floats.Min(values), nil
	case "max":
		return floats.Max(values), nil
	case "sort":
		sorted := append([]float64{}, values...)
		sort.Float64s(sorted)
		return sorted, nil
	default:
		return nil, runerr.New(runerr.KindElementInitError, "Numpy: unknown operation %q", e.operation)
	}
}

func toFloatSlice(v any) ([]float64, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, runerr.New(runerr.KindSchemaMismatch, "Numpy expects a list input, got %T", v)
	}
	out := make([]float64, 0, len(raw))
	for _, x := range raw {
		switch n := x.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		}
	}
	return out, nil
}

// Eval evaluates expression over each item, using the same C2 sandbox as
// Filter/GroupBy/Sort.
type Eval struct {
	expr *expreval.Expression
}

func newEval(args map[string]any) (registry.Element, error) {
	src, _ := args["expression"].(string)
	if src == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Eval requires a non-empty expression")
	}
	compiled, err := expreval.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Eval{expr: compiled}, nil
}

func (e *Eval) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		result, err := e.expr.Eval(rec["input"])
		if err != nil {
			return err
		}
		select {
		case out <- model.Record{"input": result}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
