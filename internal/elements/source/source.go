// Package source implements the built-in "Source" elements: Input, RestApi,
// Random, Glob (§4.9). Input, Glob, and Random with a count declare
// IsSource() true, since each produces its own first-stage stream instead of
// consuming the implicit bootstrap singleton (§3); RestApi, and Random
// without a count, produce output per upstream item and so receive that
// singleton when they are the first stage.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-resty/resty/v2"

	"github.com/conduit-run/conduit/channel"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
	"github.com/conduit-run/conduit/internal/tmpl"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:      "conduit.Input",
		Summary: "yield each member of a fixed list in order",
		CtorParams: model.Schema{
			{Name: "data", Type: model.FieldList, Required: true},
		},
		New: newInput,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.RestApi",
		Summary: "perform one HTTP request per item, yield the parsed body",
		CtorParams: model.Schema{
			{Name: "url", Type: model.FieldString, Required: true, Template: true},
			{Name: "method", Type: model.FieldString, Default: "GET"},
			{Name: "headers", Type: model.FieldMap},
			{Name: "response_format", Type: model.FieldString, Default: "json"},
			{Name: "timeout", Type: model.FieldFloat},
		},
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         newRestApi,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Random",
		Summary: "yield random numeric values",
		CtorParams: model.Schema{
			{Name: "seed", Type: model.FieldInt},
			{Name: "min", Type: model.FieldFloat, Default: 0.0},
			{Name: "max", Type: model.FieldFloat, Default: 1.0},
			{Name: "type", Type: model.FieldString, Default: "float"},
			{Name: "count", Type: model.FieldInt},
		},
		New: newRandom,
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Glob",
		Summary: "yield paths matching a glob pattern",
		CtorParams: model.Schema{
			{Name: "pattern", Type: model.FieldString, Required: true},
			{Name: "root_dir", Type: model.FieldString, Default: "."},
			{Name: "recursive", Type: model.FieldBool, Default: false},
		},
		New: newGlob,
	})
}

// Input yields each member of a fixed list, in declaration order.
type Input struct {
	data []any
}

func newInput(args map[string]any) (registry.Element, error) {
	raw, _ := args["data"].([]any)
	return &Input{data: raw}, nil
}

func (e *Input) IsSource() bool { return true }

func (e *Input) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for range in {
	}
	records := channel.Transform(channel.FromSlice(e.data), func(v any) model.Record {
		if rec, ok := v.(model.Record); ok {
			return rec
		}
		if m, ok := v.(map[string]any); ok {
			return model.Record(m)
		}
		return model.Record{"input": v}
	})
	for rec := range records {
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RestApi performs one HTTP request per upstream item, yielding the parsed
// response body. Transient failures retry via resty's own retry support
// (SPEC_FULL.md §4.9: resty's status/timeout-aware retry is preferred here
// over a generic retry middleware since it already understands HTTP
// semantics).
type RestApi struct {
	client  *resty.Client
	urlTpl  *tmpl.Template
	method  string
	headers map[string]string
	format  string
}

func newRestApi(args map[string]any) (registry.Element, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, runerr.New(runerr.KindElementInitError, "RestApi requires a non-empty url")
	}
	method, _ := args["method"].(string)
	if method == "" {
		method = "GET"
	}
	format, _ := args["response_format"].(string)
	if format == "" {
		format = "json"
	}
	headers := map[string]string{}
	if hm, ok := args["headers"].(map[string]any); ok {
		for k, v := range hm {
			headers[k] = fmt.Sprintf("%v", v)
		}
	}

	client := resty.New().SetRetryCount(3)
	if t, ok := args["timeout"].(float64); ok && t > 0 {
		client.SetTimeout(time.Duration(t * float64(time.Second)))
	}

	urlTpl, err := tmpl.Compile(rawURL)
	if err != nil {
		return nil, err
	}

	return &RestApi{client: client, urlTpl: urlTpl, method: method, headers: headers, format: format}, nil
}

func (e *RestApi) IsSource() bool { return false }

func (e *RestApi) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for rec := range in {
		url, err := e.urlTpl.Render(rec["input"])
		if err != nil {
			return runerr.Wrap(runerr.KindTemplateError, err, "rendering RestApi url")
		}
		req := e.client.R().SetContext(ctx)
		for k, v := range e.headers {
			req.SetHeader(k, v)
		}
		resp, err := req.Execute(e.method, url)
		if err != nil {
			return runerr.Wrap(runerr.KindItemError, err, "RestApi request to %q", url)
		}
		var body any
		switch e.format {
		case "text":
			body = resp.String()
		default:
			if err := json.Unmarshal(resp.Body(), &body); err != nil {
				body = resp.String()
			}
		}
		result, ok := body.(model.Record)
		if !ok {
			result = model.Record{"input": body}
		}
		select {
		case out <- result:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Random yields either count values, or one value per upstream item when
// count is unset.
type Random struct {
	rnd     *rand.Rand
	min     float64
	max     float64
	typ     string
	count   int
	hasCnt  bool
}

func newRandom(args map[string]any) (registry.Element, error) {
	e := &Random{min: 0, max: 1, typ: "float"}
	if v, ok := args["min"].(float64); ok {
		e.min = v
	}
	if v, ok := args["max"].(float64); ok {
		e.max = v
	}
	if v, ok := args["type"].(string); ok && v != "" {
		e.typ = v
	}
	if v, ok := args["count"].(int); ok {
		e.count = v
		e.hasCnt = true
	}
	var seed uint64
	if v, ok := args["seed"].(int); ok {
		seed = uint64(v)
	}
	e.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return e, nil
}

func (e *Random) IsSource() bool { return e.hasCnt }

func (e *Random) next() any {
	if e.typ == "int" {
		lo, hi := int64(e.min), int64(e.max)
		if hi <= lo {
			return lo
		}
		return lo + e.rnd.Int64N(hi-lo+1)
	}
	return e.min + e.rnd.Float64()*(e.max-e.min)
}

func (e *Random) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	if e.hasCnt {
		for range in {
		}
		for i := 0; i < e.count; i++ {
			select {
			case out <- model.Record{"input": e.next()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
	for range in {
		select {
		case out <- model.Record{"input": e.next()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Glob yields paths under root_dir matching pattern, grounded on
// bmatcuk/doublestar for ** recursive matching (the stdlib filepath.Glob
// has no ** support, which the spec's recursive option requires).
type Glob struct {
	pattern   string
	rootDir   string
	recursive bool
}

func newGlob(args map[string]any) (registry.Element, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, runerr.New(runerr.KindElementInitError, "Glob requires a non-empty pattern")
	}
	root, _ := args["root_dir"].(string)
	if root == "" {
		root = "."
	}
	recursive, _ := args["recursive"].(bool)
	return &Glob{pattern: pattern, rootDir: root, recursive: recursive}, nil
}

func (e *Glob) IsSource() bool { return true }

func (e *Glob) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for range in {
	}
	pattern := e.pattern
	if e.recursive && !hasDoubleStarPrefix(pattern) {
		pattern = filepath.Join("**", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(e.rootDir), pattern)
	if err != nil {
		return runerr.Wrap(runerr.KindItemError, err, "Glob pattern %q", e.pattern)
	}
	for _, m := range matches {
		select {
		case out <- model.Record{"input": filepath.Join(e.rootDir, m)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func hasDoubleStarPrefix(p string) bool {
	return len(p) >= 2 && p[0] == '*' && p[1] == '*'
}
