// Package data implements the built-in "Data" elements: CsvReader, GroupBy,
// Sort (§4.9). GroupBy and Sort are the spec's only buffered stages: they
// drain their entire upstream before emitting anything, grounded on the
// original's groupby.py materialize-then-group structure
// (_examples/original_source/src/conduit/elements/groupby.py).
package data

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/conduit-run/conduit/channel"
	"github.com/conduit-run/conduit/internal/expreval"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:      "conduit.CsvReader",
		Summary: "yield one record per CSV row",
		CtorParams: model.Schema{
			{Name: "delimiter", Type: model.FieldString, Default: ","},
			{Name: "quotechar", Type: model.FieldString, Default: "\""},
			{Name: "encoding", Type: model.FieldString, Default: "utf-8"},
			{Name: "skip_empty_rows", Type: model.FieldBool, Default: true},
			{Name: "fieldnames", Type: model.FieldList},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newCsvReader,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.GroupBy",
		Summary: "buffer upstream, emit {key, values} grouped records",
		CtorParams: model.Schema{
			{Name: "key", Type: model.FieldString, Required: true, Expression: true},
			{Name: "value", Type: model.FieldString, Expression: true},
		},
		Buffered:    true,
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newGroupBy,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Sort",
		Summary: "buffer upstream, emit records ordered by key",
		CtorParams: model.Schema{
			{Name: "key", Type: model.FieldString, Required: true, Expression: true},
			{Name: "reverse", Type: model.FieldBool, Default: false},
		},
		Buffered:    true,
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newSort,
	})
}

// CsvReader accepts a path, yielding one record per row keyed by header
// (or fieldnames, if given).
type CsvReader struct {
	delimiter     rune
	quote         rune
	skipEmpty     bool
	fieldnames    []string
}

func newCsvReader(args map[string]any) (registry.Element, error) {
	e := &CsvReader{delimiter: ',', quote: '"', skipEmpty: true}
	if d, ok := args["delimiter"].(string); ok && d != "" {
		e.delimiter = []rune(d)[0]
	}
	if q, ok := args["quotechar"].(string); ok && q != "" {
		e.quote = []rune(q)[0]
	}
	if v, ok := args["skip_empty_rows"].(bool); ok {
		e.skipEmpty = v
	}
	if names, ok := args["fieldnames"].([]any); ok {
		for _, n := range names {
			if s, ok := n.(string); ok {
				e.fieldnames = append(e.fieldnames, s)
			}
		}
	}
	return e, nil
}

func (e *CsvReader) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		if err := e.processOne(ctx, rec["input"], out); err != nil {
			return err
		}
	}
	return nil
}

func (e *CsvReader) processOne(ctx context.Context, item any, out chan<- model.Record) error {
	var r io.Reader
	switch v := item.(type) {
	case string:
		f, err := os.Open(v)
		if err != nil {
			return runerr.Wrap(runerr.KindItemError, err, "opening CSV %q", v)
		}
		defer f.Close()
		r = f
	case io.Reader:
		r = v
	default:
		return runerr.New(runerr.KindSchemaMismatch, "CsvReader input must be a path or reader, got %T", item)
	}

	reader := csv.NewReader(r)
	reader.Comma = e.delimiter
	reader.LazyQuotes = true

	headers := e.fieldnames
	first := headers == nil
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return runerr.Wrap(runerr.KindItemError, err, "reading CSV row")
		}
		if first {
			headers = row
			first = false
			continue
		}
		if e.skipEmpty && isEmptyRow(row) {
			continue
		}
		rec := make(model.Record, len(row))
		for i, v := range row {
			if i < len(headers) {
				rec[headers[i]] = v
			}
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// GroupBy buffers its entire upstream, then emits one {key, values} record
// per distinct key, in first-seen-key order (§5 ordering).
type GroupBy struct {
	key   *expreval.Expression
	value *expreval.Expression
}

func newGroupBy(args map[string]any) (registry.Element, error) {
	keySrc, _ := args["key"].(string)
	key, err := expreval.Compile(keySrc)
	if err != nil {
		return nil, err
	}
	var value *expreval.Expression
	if valSrc, ok := args["value"].(string); ok && valSrc != "" {
		value, err = expreval.Compile(valSrc)
		if err != nil {
			return nil, err
		}
	}
	return &GroupBy{key: key, value: value}, nil
}

func (e *GroupBy) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	var order []any
	groups := make(map[any][]any)

	for rec := range in {
		input := rec["input"]
		k, err := e.key.Eval(input)
		if err != nil {
			return err
		}
		v := input
		if e.value != nil {
			v, err = e.value.Eval(input)
			if err != nil {
				return err
			}
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], v)
	}

	for _, k := range order {
		select {
		case out <- model.Record{"key": k, "values": groups[k]}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Sort buffers its entire upstream, then emits items ordered by key (or its
// reverse).
type Sort struct {
	key     *expreval.Expression
	reverse bool
}

func newSort(args map[string]any) (registry.Element, error) {
	keySrc, _ := args["key"].(string)
	key, err := expreval.Compile(keySrc)
	if err != nil {
		return nil, err
	}
	reverse, _ := args["reverse"].(bool)
	return &Sort{key: key, reverse: reverse}, nil
}

func (e *Sort) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	type entry struct {
		key  any
		item model.Record
	}
	var evalErr error
	keyed := channel.Transform(in, func(rec model.Record) entry {
		if evalErr != nil {
			return entry{item: rec}
		}
		k, err := e.key.Eval(rec["input"])
		if err != nil {
			evalErr = err
			return entry{item: rec}
		}
		return entry{key: k, item: rec}
	})
	entries := channel.ToSlice(keyed)
	if evalErr != nil {
		return evalErr
	}

	sort.SliceStable(entries, func(i, j int) bool {
		less := lessAny(entries[i].key, entries[j].key)
		if e.reverse {
			return !less && !equalAny(entries[i].key, entries[j].key)
		}
		return less
	})

	for _, en := range entries {
		select {
		case out <- en.item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func lessAny(a, b any) bool {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	return false
}

func equalAny(a, b any) bool {
	return a == b
}
