// Package tmpl implements C1, the template evaluator: {{ expr }}
// interpolation and {{ expr | filter }} pipes evaluated against a per-item
// "input" context, with a fixed set of path-manipulation filters.
//
// Grounded on the original's SafeTemplateRenderer
// (_examples/original_source/src/conduit/template_renderer.py), which
// restricts Jinja2 to a single BaseLoader template with autoescape off and
// a handful of registered path filters. Go's text/template already speaks
// the "{{ expr | filter }}" pipe syntax natively, so the restriction here
// is enforced by compiling with a closed FuncMap (no template can reach a
// function it doesn't name) and by rejecting any parsed action node other
// than a field/pipe chain -- no {{if}}, {{range}}, {{define}}, {{template}}.
package tmpl

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/conduit-run/conduit/internal/runerr"
)

// inputWord rewrites the bare "input" context identifier used by the
// spec's template syntax ({{input.field}}) into the $input template
// variable, since text/template only allows a trailing field chain
// (".field.field") on a variable or the root dot, never on a bare
// identifier.
var inputWord = regexp.MustCompile(`\binput\b`)

// Template is a compiled C1 template, safe to render concurrently.
type Template struct {
	tpl *template.Template
	src string
}

func filterFuncs() template.FuncMap {
	return template.FuncMap{
		"get_filename":                  filepath.Base,
		"get_dirname":                   filepath.Dir,
		"get_basename":                  func(p string) string { return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)) },
		"get_extension":                 filepath.Ext,
		"get_filename_without_extension": func(p string) string { return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)) },
		"filesizeformat":                filesizeformat,
		// process is a documented identity no-op filter placeholder (§4.1).
		"process": func(v any) any { return v },
	}
}

func filesizeformat(v any) string {
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case float64:
		n = t
	default:
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				n = f
			}
		}
	}
	const unit = 1024.0
	if n < unit {
		return fmt.Sprintf("%.0fB", n)
	}
	div, exp := unit, 0
	for x := n / unit; x >= unit; x /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	if exp >= len(suffixes) {
		exp = len(suffixes) - 1
	}
	return fmt.Sprintf("%.1f%s", n/div, suffixes[exp])
}

// allowedNodes are the text/template parse node kinds a restricted
// template may contain: plain text and field/pipe actions. Control-flow
// and inclusion nodes (if/range/with/template/define/block) are rejected
// at compile time.
var allowedNodes = map[parse.NodeType]bool{
	parse.NodeText:   true,
	parse.NodeAction: true,
	parse.NodeList:   true,
}

// Compile parses and validates src once. The returned Template may be
// rendered many times against different per-item contexts.
func Compile(src string) (*Template, error) {
	rewritten := "{{$input := .Input}}" + inputWord.ReplaceAllString(src, "$$input")
	t, err := template.New("conduit").Option("missingkey=default").Funcs(filterFuncs()).Parse(rewritten)
	if err != nil {
		return nil, runerr.Wrap(runerr.KindTemplateError, err, "compiling template %q", src)
	}
	if err := validate(t.Root); err != nil {
		return nil, runerr.Wrap(runerr.KindTemplateError, err, "template %q uses disallowed syntax", src)
	}
	return &Template{tpl: t, src: src}, nil
}

func validate(list *parse.ListNode) error {
	if list == nil {
		return nil
	}
	for _, n := range list.Nodes {
		if !allowedNodes[n.Type()] {
			return fmt.Errorf("disallowed template construct: %s", n.String())
		}
	}
	return nil
}

// Render evaluates the template against input, the per-item context
// variable. Unknown fields/keys render as empty per §4.1 ("unknown
// variables render as empty").
func (t *Template) Render(input any) (string, error) {
	var buf bytes.Buffer
	// text/template's missingkey=default option already makes a missing
	// map key render as empty, satisfying the "unknown variables render
	// as empty" rule without extra plumbing.
	if err := t.tpl.Execute(&buf, map[string]any{"Input": input}); err != nil {
		return "", runerr.Wrap(runerr.KindTemplateError, err, "rendering template %q", t.src)
	}
	// text/template's missingkey=default prints the literal "<no value>"
	// for an absent map key rather than an empty string; strip it so a
	// reference to an unset field behaves per §4.1.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// String returns the template's original source.
func (t *Template) String() string { return t.src }
