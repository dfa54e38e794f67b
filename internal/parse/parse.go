// Package parse turns raw pipeline YAML into resolved []model.StageDescriptor:
// it unmarshals into a generic map[string]any/[]any tree via goccy/go-yaml,
// resolves ${NAME:-default} tokens (C3, internal/resolve) against run-args,
// then walks the tree into typed stage descriptors, recursing into Fork's
// "paths" sub-documents.
package parse

import (
	"github.com/goccy/go-yaml"

	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/resolve"
	"github.com/conduit-run/conduit/internal/runerr"
)

// Pipeline parses and resolves raw YAML describing a pipeline ("pipeline:
// [stage, stage, ...]" or a bare top-level sequence) into stage
// descriptors, using args for ${NAME} resolution.
func Pipeline(raw []byte, args map[string]string) ([]model.StageDescriptor, error) {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, runerr.Wrap(runerr.KindParseError, err, "parsing pipeline YAML")
	}

	resolved, err := resolve.Resolve(tree, resolve.NewLookup(args))
	if err != nil {
		return nil, err
	}

	stages := unwrapStageList(normalizeNumbers(resolved))
	return stageList(stages)
}

// normalizeNumbers converts the int64/uint64 values goccy/go-yaml produces
// for integer scalars into plain Go int, matching every element's
// args["field"].(int) type assertions; float scalars already decode as
// float64 and are left unchanged.
func normalizeNumbers(node any) any {
	switch v := node.(type) {
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeNumbers(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeNumbers(val)
		}
		return out
	default:
		return v
	}
}

// unwrapStageList accepts either a bare sequence document or a mapping with
// a top-level "pipeline" key.
func unwrapStageList(tree any) any {
	if m, ok := tree.(map[string]any); ok {
		if p, ok := m["pipeline"]; ok {
			return p
		}
	}
	return tree
}

func stageList(raw any) ([]model.StageDescriptor, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, runerr.New(runerr.KindParseError, "pipeline document must be a sequence of stages")
	}
	out := make([]model.StageDescriptor, 0, len(items))
	for _, item := range items {
		d, err := stageDescriptor(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func stageDescriptor(raw any) (model.StageDescriptor, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return model.StageDescriptor{}, runerr.New(runerr.KindParseError, "stage entry must be a mapping, got %T", raw)
	}
	id, _ := m["id"].(string)
	if id == "" {
		return model.StageDescriptor{}, runerr.New(runerr.KindParseError, "stage entry missing required \"id\" field")
	}

	desc := model.StageDescriptor{ID: id, Params: map[string]any{}}
	for k, v := range m {
		switch k {
		case "id":
			// handled above
		case "paths":
			paths, err := pathsOf(v)
			if err != nil {
				return model.StageDescriptor{}, err
			}
			desc.Paths = paths
		default:
			desc.Params[k] = v
		}
	}
	return desc, nil
}

func pathsOf(raw any) (map[string][]model.StageDescriptor, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, runerr.New(runerr.KindParseError, "Fork \"paths\" must be a mapping of label to stage list")
	}
	out := make(map[string][]model.StageDescriptor, len(m))
	for label, v := range m {
		stages, err := stageList(v)
		if err != nil {
			return nil, err
		}
		out[label] = stages
	}
	return out, nil
}
