package resolve

import "testing"

func TestResolve_WholeTokenResolvesToString(t *testing.T) {
	lookup := NewLookup(map[string]string{"PORT": "8080"})

	resolved, err := Resolve(map[string]any{"port": "${PORT}"}, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := resolved.(map[string]any)
	if m["port"] != "8080" {
		t.Errorf("expected resolved value %q, got %v (%T)", "8080", m["port"], m["port"])
	}
}

func TestResolve_EmbeddedTokenStaysString(t *testing.T) {
	lookup := NewLookup(map[string]string{"NAME": "world"})

	resolved, err := Resolve("hello-${NAME}-!", lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != "hello-world-!" {
		t.Errorf("expected %q, got %v", "hello-world-!", resolved)
	}
}

func TestResolve_DefaultUsedWhenUnset(t *testing.T) {
	lookup := NewLookup(map[string]string{})

	resolved, err := Resolve("${MISSING:-fallback}", lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != "fallback" {
		t.Errorf("expected %q, got %v", "fallback", resolved)
	}
}

func TestResolve_UnsetWithoutDefaultErrors(t *testing.T) {
	lookup := NewLookup(map[string]string{})

	if _, err := Resolve("${MISSING}", lookup); err == nil {
		t.Fatal("expected an error for an unresolved token with no default")
	}
}

func TestResolve_ArgsTakePrecedenceOverEnv(t *testing.T) {
	t.Setenv("CONDUIT_TEST_PRECEDENCE", "env-value")
	lookup := NewLookup(map[string]string{"CONDUIT_TEST_PRECEDENCE": "arg-value"})

	resolved, err := Resolve("${CONDUIT_TEST_PRECEDENCE}", lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != "arg-value" {
		t.Errorf("expected args to win over env, got %v", resolved)
	}
}

func TestIdempotent_NoTokensLeft(t *testing.T) {
	lookup := NewLookup(map[string]string{"NAME": "world"})
	tree := map[string]any{"greeting": "hello-${NAME}"}

	ok, err := Idempotent(tree, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected resolving twice to be idempotent")
	}
}

func TestResolve_WalksNestedLists(t *testing.T) {
	lookup := NewLookup(map[string]string{"X": "1"})
	tree := []any{map[string]any{"a": "${X}"}, "literal"}

	resolved, err := Resolve(tree, lookup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := resolved.([]any)
	if list[0].(map[string]any)["a"] != "1" {
		t.Errorf("expected nested value to resolve, got %v", list[0])
	}
	if list[1] != "literal" {
		t.Errorf("expected literal to pass through, got %v", list[1])
	}
}
