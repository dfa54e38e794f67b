// Package resolve implements C3, the env/arg resolver: it expands
// ${NAME} / ${NAME:-default} tokens found in string scalars of a parsed
// YAML tree, using run-args first, then the process environment, then the
// token's own default, and failing the build if none apply.
//
// Grounded on the original's regex-based expand_env_vars
// (_examples/original_source/src/conduit/common.py), adapted to walk the
// already-parsed YAML value tree (map[string]any / []any / scalars)
// instead of raw text. Every substituted value is a string, including a
// scalar consisting of exactly one token; converting it to the field's type
// is left to the element's schema-driven coercion (internal/coerce).
package resolve

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/conduit-run/conduit/internal/runerr"
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// wholeTokenPattern matches a string that is exactly one ${...} token with
// nothing else around it; such a scalar resolves to the token's value alone.
var wholeTokenPattern = regexp.MustCompile(`^\$\{([^}]+)\}$`)

// Lookup resolves a single NAME to a value, honoring the run-args > env >
// default > unset precedence of §4.3. ok is false only when no value and
// no default apply.
type Lookup func(name string) (value string, ok bool)

// NewLookup builds a Lookup from a run-args mapping, falling back to the
// process environment.
func NewLookup(args map[string]string) Lookup {
	return func(name string) (string, bool) {
		if v, ok := args[name]; ok {
			return v, true
		}
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		return "", false
	}
}

// Resolve walks a parsed YAML value tree in place semantics (returns a new
// tree; inputs are not mutated) substituting ${NAME[:-default]} tokens in
// every string scalar reachable from root.
func Resolve(root any, lookup Lookup) (any, error) {
	return walk(root, lookup)
}

func walk(node any, lookup Lookup) (any, error) {
	switch v := node.(type) {
	case string:
		return resolveString(v, lookup)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			rv, err := walk(val, lookup)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rv, err := walk(val, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return node, nil
	}
}

func resolveString(s string, lookup Lookup) (any, error) {
	if m := wholeTokenPattern.FindStringSubmatch(s); m != nil {
		val, err := resolveToken(m[1], lookup)
		if err != nil {
			return nil, err
		}
		return val, nil
	}

	var resolveErr error
	out := tokenPattern.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		sub := tokenPattern.FindStringSubmatch(match)
		val, err := resolveToken(sub[1], lookup)
		if err != nil {
			resolveErr = err
			return match
		}
		return val
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return out, nil
}

// resolveToken resolves the inside of a single ${...}, honoring the
// NAME:-default form. The returned value is always a string here; the
// caller (resolveString) only preserves non-string typing for
// whole-string single tokens, and even then the default/env/arg source is
// textual — only the *result* is treated as a raw string that the
// element's schema-driven coercion (internal/coerce) later converts.
func resolveToken(expr string, lookup Lookup) (string, error) {
	name, def, hasDefault := splitDefault(expr)
	if v, ok := lookup(name); ok {
		return v, nil
	}
	if hasDefault {
		return def, nil
	}
	return "", runerr.New(runerr.KindParseError, "unresolved variable %q: no arg, env, or default", name)
}

func splitDefault(expr string) (name, def string, hasDefault bool) {
	idx := strings.Index(expr, ":-")
	if idx < 0 {
		return expr, "", false
	}
	name = expr[:idx]
	def = strings.Trim(expr[idx+2:], `'"`)
	return name, def, true
}

// Idempotent reports whether resolving an already-resolved tree again
// yields an identical tree, per §8 universal property 3. It is exercised
// by tests, not called at runtime: a tree free of ${...} tokens always
// resolves to itself since resolveString is a no-op when tokenPattern
// finds nothing.
func Idempotent(root any, lookup Lookup) (bool, error) {
	once, err := Resolve(root, lookup)
	if err != nil {
		return false, err
	}
	twice, err := Resolve(once, lookup)
	if err != nil {
		return false, err
	}
	return fmt.Sprintf("%#v", once) == fmt.Sprintf("%#v", twice), nil
}
