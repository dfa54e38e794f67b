package expreval

import "testing"

func TestEvalBool_ComparesInputField(t *testing.T) {
	expr, err := Compile(`input.age >= 18`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	got, err := expr.EvalBool(map[string]any{"age": 21})
	if err != nil {
		t.Fatalf("EvalBool failed: %v", err)
	}
	if !got {
		t.Error("expected 21 >= 18 to be true")
	}
}

func TestEvalBool_NonBoolResultErrors(t *testing.T) {
	expr, err := Compile(`input.age`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if _, err := expr.EvalBool(map[string]any{"age": 21}); err == nil {
		t.Fatal("expected a non-boolean result to error")
	}
}

func TestEval_CustomAbsFunction(t *testing.T) {
	expr, err := Compile(`abs(input.delta)`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	got, err := expr.Eval(map[string]any{"delta": -5.5})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if got != 5.5 {
		t.Errorf("Eval() = %v, want 5.5", got)
	}
}

func TestEval_BuiltinLenOverArray(t *testing.T) {
	expr, err := Compile(`len(input.items)`)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	got, err := expr.Eval(map[string]any{"items": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if got != 3 {
		t.Errorf("Eval() = %v, want 3", got)
	}
}

func TestEval_UndefinedVariableDoesNotPanicAtCompile(t *testing.T) {
	if _, err := Compile(`input.nested.deeply.missing == nil`); err != nil {
		t.Fatalf("expected undefined-variable access to compile under AllowUndefinedVariables, got %v", err)
	}
}

func TestCompile_SyntaxErrorFails(t *testing.T) {
	if _, err := Compile(`input.age >=`); err == nil {
		t.Fatal("expected a syntax error to fail compilation")
	}
}
