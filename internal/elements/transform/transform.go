// Package transform implements the built-in "Transform" elements: Filter,
// JsonQuery, Extract, Format, Console, Replace (§4.9).
package transform

import (
	"context"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/conduit-run/conduit/channel"
	"github.com/conduit-run/conduit/internal/expreval"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
	"github.com/conduit-run/conduit/internal/tmpl"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:      "conduit.Filter",
		Summary: "emit items matching a boolean expression",
		CtorParams: model.Schema{
			{Name: "condition", Type: model.FieldString, Required: true, Expression: true},
			{Name: "keep_matching", Type: model.FieldBool, Default: true},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newFilter,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.JsonQuery",
		Summary: "evaluate a jq-style query, yielding each selected value",
		CtorParams: model.Schema{
			{Name: "query", Type: model.FieldString, Required: true},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newJsonQuery,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Extract",
		Summary: "yield regex capture group(s)",
		CtorParams: model.Schema{
			{Name: "pattern", Type: model.FieldString, Required: true},
			{Name: "group", Type: model.FieldInt, Default: 1},
			{Name: "all_matches", Type: model.FieldBool, Default: false},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldString}},
		New:         newExtract,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Format",
		Summary: "render a template against the item",
		CtorParams: model.Schema{
			{Name: "template", Type: model.FieldString, Required: true, Template: true},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newFormat,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Console",
		Summary: "render a template, write it to the run's stdout sink, and forward the item",
		CtorParams: model.Schema{
			{Name: "format", Type: model.FieldString, Required: true, Template: true},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newConsole,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Replace",
		Summary: "regex replace within a string item",
		CtorParams: model.Schema{
			{Name: "pattern", Type: model.FieldString, Required: true},
			{Name: "replacement", Type: model.FieldString, Required: true},
			{Name: "count", Type: model.FieldInt, Default: 0},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldString}},
		New:         newReplace,
	})
}

// Stdout is the narrow sink interface Console writes rendered lines to; the
// HTTP driver (C10) and CLI provide concrete implementations backed by a
// per-run buffer or os.Stdout respectively, threaded through context
// (SPEC_FULL.md §4.10's per-run RunContext, not global redirection).
type Stdout interface {
	WriteLine(line string)
}

type stdoutKey struct{}

// WithStdout returns a context carrying sink as the active Console
// destination for the run.
func WithStdout(ctx context.Context, sink Stdout) context.Context {
	return context.WithValue(ctx, stdoutKey{}, sink)
}

func stdoutFrom(ctx context.Context) Stdout {
	if s, ok := ctx.Value(stdoutKey{}).(Stdout); ok {
		return s
	}
	return nil
}

// Filter emits items for which condition matches (or its negation, per
// keep_matching).
type Filter struct {
	cond         *expreval.Expression
	keepMatching bool
}

func newFilter(args map[string]any) (registry.Element, error) {
	cond, _ := args["condition"].(string)
	if cond == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Filter requires a non-empty condition")
	}
	expr, err := expreval.Compile(cond)
	if err != nil {
		return nil, err
	}
	keep := true
	if v, ok := args["keep_matching"].(bool); ok {
		keep = v
	}
	return &Filter{cond: expr, keepMatching: keep}, nil
}

func (e *Filter) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	var evalErr error
	kept := channel.Filter(in, func(rec model.Record) bool {
		if evalErr != nil {
			return false
		}
		matched, err := e.cond.EvalBool(rec["input"])
		if err != nil {
			evalErr = err
			return false
		}
		return matched == e.keepMatching
	})
	for rec := range kept {
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return evalErr
}

// JsonQuery evaluates a jq-style query against each item, yielding one
// record per selected value (results from a query ending in "[]" expand).
type JsonQuery struct {
	code *gojq.Code
}

func newJsonQuery(args map[string]any) (registry.Element, error) {
	q, _ := args["query"].(string)
	if q == "" {
		return nil, runerr.New(runerr.KindElementInitError, "JsonQuery requires a non-empty query")
	}
	parsed, err := gojq.Parse(q)
	if err != nil {
		return nil, runerr.Wrap(runerr.KindElementInitError, err, "parsing jq query %q", q)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, runerr.Wrap(runerr.KindElementInitError, err, "compiling jq query %q", q)
	}
	return &JsonQuery{code: code}, nil
}

func (e *JsonQuery) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	var evalErr error
	expanded := channel.Process(in, func(rec model.Record) []model.Record {
		if evalErr != nil {
			return nil
		}
		var results []model.Record
		iter := e.code.RunWithContext(ctx, rec["input"])
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := v.(error); ok {
				evalErr = runerr.Wrap(runerr.KindItemError, err, "evaluating jq query")
				return nil
			}
			results = append(results, model.Record{"input": v})
		}
		return results
	})
	for rec := range expanded {
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return evalErr
}

// Extract yields regex capture group(s) from a string item.
type Extract struct {
	re         *regexp.Regexp
	group      int
	allMatches bool
}

func newExtract(args map[string]any) (registry.Element, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Extract requires a non-empty pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, runerr.Wrap(runerr.KindElementInitError, err, "compiling Extract pattern %q", pattern)
	}
	group := 1
	if v, ok := args["group"].(int); ok {
		group = v
	}
	all, _ := args["all_matches"].(bool)
	return &Extract{re: re, group: group, allMatches: all}, nil
}

func (e *Extract) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	expanded := channel.Process(in, func(rec model.Record) []model.Record {
		s, _ := rec["input"].(string)
		var matches [][]string
		if e.allMatches {
			matches = e.re.FindAllStringSubmatch(s, -1)
		} else if m := e.re.FindStringSubmatch(s); m != nil {
			matches = [][]string{m}
		}
		var results []model.Record
		for _, m := range matches {
			if e.group >= len(m) {
				continue
			}
			results = append(results, model.Record{"input": m[e.group]})
		}
		return results
	})
	for rec := range expanded {
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Format renders template against each item.
type Format struct {
	tpl *tmpl.Template
}

func newFormat(args map[string]any) (registry.Element, error) {
	src, _ := args["template"].(string)
	t, err := tmpl.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Format{tpl: t}, nil
}

func (e *Format) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		rendered, err := e.tpl.Render(rec["input"])
		if err != nil {
			return err
		}
		select {
		case out <- model.Record{"input": rendered}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Console renders format against each item, writes the rendered line to the
// run's stdout sink, and forwards the original item unchanged downstream
// (Open Question (c): both side effect and forward).
type Console struct {
	tpl *tmpl.Template
}

func newConsole(args map[string]any) (registry.Element, error) {
	src, _ := args["format"].(string)
	t, err := tmpl.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Console{tpl: t}, nil
}

func (e *Console) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	sink := stdoutFrom(ctx)
	for rec := range in {
		rendered, err := e.tpl.Render(rec["input"])
		if err != nil {
			return err
		}
		if sink != nil {
			sink.WriteLine(rendered)
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Replace performs a regex substitution on a string item.
type Replace struct {
	re          *regexp.Regexp
	replacement string
	count       int
}

func newReplace(args map[string]any) (registry.Element, error) {
	pattern, _ := args["pattern"].(string)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, runerr.Wrap(runerr.KindElementInitError, err, "compiling Replace pattern %q", pattern)
	}
	replacement, _ := args["replacement"].(string)
	count := 0
	if v, ok := args["count"].(int); ok {
		count = v
	}
	return &Replace{re: re, replacement: replacement, count: count}, nil
}

func (e *Replace) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		s, _ := rec["input"].(string)
		var result string
		if e.count <= 0 {
			result = e.re.ReplaceAllString(s, e.replacement)
		} else {
			result = replaceN(e.re, s, e.replacement, e.count)
		}
		select {
		case out <- model.Record{"input": result}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// replaceN replaces at most n occurrences of re in s, since regexp has no
// built-in count-limited ReplaceAll.
func replaceN(re *regexp.Regexp, s, replacement string, n int) string {
	var b strings.Builder
	remaining := n
	last := 0
	locs := re.FindAllStringSubmatchIndex(s, -1)
	for _, loc := range locs {
		if remaining <= 0 {
			break
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(string(re.ExpandString(nil, replacement, s, loc)))
		last = loc[1]
		remaining--
	}
	b.WriteString(s[last:])
	return b.String()
}
