// Package build implements C6, the pipeline builder: given a resolved
// descriptor list, run-args, and a registry, it looks up each stage's
// element class, separates constructor args from per-item defaults,
// instantiates the element, and compiles any template/expression fields
// once.
//
// Grounded on the teacher's pattern of constructing a handler closure once
// and reusing it across every channel send (pipe.NewProcessPipe et al.,
// _examples/fxsml-gopipe/pipe/pipe.go): Build performs the equivalent
// one-time compilation work for Conduit stages instead of per-item.
package build

import (
	"log/slog"

	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
)

// Stage is one built, ready-to-run pipeline stage.
type Stage struct {
	Index        int
	ID           string
	Element      registry.Element
	InputSchema  model.Schema
	CtorDefaults model.Record
	Buffered     bool
	IsSource     bool
}

// Pipeline is the fully built, not-yet-running chain of stages.
type Pipeline struct {
	Stages []Stage
}

// Options controls how strictly Build treats descriptor keys that match
// neither a constructor parameter nor an input-schema field (§4.6 step 2).
type Options struct {
	Registry       *registry.Registry
	Args           map[string]string
	ErrorOnUnknown bool
}

// Build constructs a Pipeline from already env/arg-resolved descriptors.
func Build(descs []model.StageDescriptor, opts Options) (*Pipeline, error) {
	if len(descs) == 0 {
		return nil, runerr.New(runerr.KindParseError, "pipeline descriptor list must be non-empty")
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default
	}

	p := &Pipeline{Stages: make([]Stage, 0, len(descs))}
	for i, d := range descs {
		stage, err := buildStage(i, d, reg, opts)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, stage)
	}
	return p, nil
}

func buildStage(index int, d model.StageDescriptor, reg *registry.Registry, opts Options) (Stage, error) {
	desc, ok := reg.Lookup(d.ID)
	if !ok {
		return Stage{}, runerr.New(runerr.KindUnknownElement, "unknown element id %q", d.ID).WithStage(index, d.ID)
	}

	ctorArgs, itemDefaults, err := splitParams(d.Params, desc)
	if err != nil {
		if opts.ErrorOnUnknown {
			return Stage{}, err.WithStage(index, d.ID)
		}
		slog.Warn("ignoring unrecognized stage parameters", "stage_index", index, "stage_id", d.ID, "error", err.Error())
	}

	// Fork descriptors carry Paths instead of ordinary Params; element
	// factories that need them (flow.Fork) read them back out of
	// ctorArgs under the reserved "paths" key, which Build injects here
	// so the registry.Factory signature stays uniform across all
	// elements (see internal/elements/flow.Fork's factory).
	if d.Paths != nil {
		if ctorArgs == nil {
			ctorArgs = map[string]any{}
		}
		ctorArgs["paths"] = d.Paths
		ctorArgs["__registry"] = reg
		ctorArgs["__args"] = opts.Args
	}

	el, buildErr := desc.New(ctorArgs)
	if buildErr != nil {
		return Stage{}, runerr.Wrap(runerr.KindElementInitError, buildErr, "instantiating %q", d.ID).WithStage(index, d.ID)
	}

	isSource := false
	if s, ok := el.(registry.Source); ok {
		isSource = s.IsSource()
	}

	return Stage{
		Index:        index,
		ID:           d.ID,
		Element:      el,
		InputSchema:  desc.InputSchema,
		CtorDefaults: model.Record(itemDefaults),
		Buffered:     desc.Buffered,
		IsSource:     isSource,
	}, nil
}

// splitParams separates a stage's raw YAML parameters into constructor
// arguments (matching desc.CtorParams) and per-item defaults (matching
// desc.InputSchema); a key may belong to both, or to neither (§4.6 step 2:
// "keys that belong to neither are a build-time warning, configurable to
// error").
func splitParams(params map[string]any, desc registry.Descriptor) (ctorArgs map[string]any, itemDefaults map[string]any, unknownErr *runerr.Error) {
	ctorArgs = make(map[string]any)
	itemDefaults = make(map[string]any)

	ctorNames := make(map[string]bool, len(desc.CtorParams))
	for _, f := range desc.CtorParams {
		ctorNames[f.Name] = true
	}
	fieldNames := make(map[string]bool, len(desc.InputSchema))
	for _, f := range desc.InputSchema {
		fieldNames[f.Name] = true
	}

	var unknown []string
	for k, v := range params {
		matched := false
		if ctorNames[k] {
			ctorArgs[k] = v
			matched = true
		}
		if fieldNames[k] {
			itemDefaults[k] = v
			matched = true
		}
		if !matched {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		unknownErr = runerr.New(runerr.KindSchemaMismatch, "element %q: unrecognized parameters %v", desc.ID, unknown)
	}
	return ctorArgs, itemDefaults, unknownErr
}
