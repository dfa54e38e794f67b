// Package expreval implements C2, the sandboxed expression evaluator used
// by Filter.condition, GroupBy.key, Sort.key, and Eval.expression.
//
// Grounded on the original's SafeExpressionEvaluator, an AST-walking
// interpreter restricted to a fixed operator set and a closed variable
// namespace (_examples/original_source/src/conduit/elements/eval.py).
// github.com/expr-lang/expr provides the same sandbox guarantee (a closed
// compile-time environment, no reflection into arbitrary Go values beyond
// what's passed in, no imports, no statements) without hand-rolling an AST
// walker, so it is used here as the compiled evaluator rather than
// reimplementing go/ast restrictions from scratch. expr's standard
// library already provides len/any/all/min/max over arrays with the
// predicate-closure style idiomatic to the expr language
// (https://expr-lang.org/docs/language-definition#builtin-functions); only
// abs, absent from that standard library, is added as a custom function.
package expreval

import (
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/conduit-run/conduit/internal/runerr"
)

// Expression is a compiled C2 expression, safe to evaluate concurrently.
type Expression struct {
	program *vm.Program
	src     string
}

func options() []expr.Option {
	return []expr.Option{
		// The per-item "input" value's shape varies by stage, so the
		// environment is intentionally left open rather than declaring a
		// fixed struct/map shape.
		expr.AllowUndefinedVariables(),
		expr.Function("abs", func(params ...any) (any, error) {
			f, _ := toFloat(params[0])
			return math.Abs(f), nil
		}),
	}
}

// Compile parses and compiles src once. The returned Expression may be
// evaluated many times against different per-item inputs.
func Compile(src string) (*Expression, error) {
	program, err := expr.Compile(src, options()...)
	if err != nil {
		return nil, runerr.Wrap(runerr.KindExpressionError, err, "compiling expression %q", src)
	}
	return &Expression{program: program, src: src}, nil
}

// Eval runs the compiled expression against a single item's input value.
func (e *Expression) Eval(input any) (any, error) {
	out, err := expr.Run(e.program, map[string]any{"input": input})
	if err != nil {
		return nil, runerr.Wrap(runerr.KindExpressionError, err, "evaluating expression %q", e.src)
	}
	return out, nil
}

// EvalBool runs the expression and requires a boolean result, used by
// Filter.condition.
func (e *Expression) EvalBool(input any) (bool, error) {
	out, err := e.Eval(input)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, runerr.New(runerr.KindExpressionError, "expression %q did not evaluate to a boolean (got %T)", e.src, out)
	}
	return b, nil
}

// String returns the expression's original source.
func (e *Expression) String() string { return e.src }

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
