package flow

import (
	"context"

	"github.com/conduit-run/conduit/channel"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:          "conduit.Iterate",
		Summary:     "expand a sequence item into its members",
		InputSchema: model.Schema{{Name: "input", Type: model.FieldAny}},
		New:         func(map[string]any) (registry.Element, error) { return &Iterate{}, nil },
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Identity",
		Summary: "pass-through",
		New:     func(map[string]any) (registry.Element, error) { return &Identity{}, nil },
	})
	registry.Register(registry.Descriptor{
		ID:      "conduit.Empty",
		Summary: "yields nothing",
		New:     func(map[string]any) (registry.Element, error) { return &Empty{}, nil },
	})
}

// Iterate expands a sequence item into its members. Non-sequence input is
// passed through unchanged (Open Question (b), resolved as pass-through
// per SPEC_FULL.md).
type Iterate struct{}

func (e *Iterate) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	expanded := channel.Process(in, func(rec model.Record) []model.Record {
		v := rec["input"]
		switch seq := v.(type) {
		case []any:
			members := make([]model.Record, len(seq))
			for i, item := range seq {
				members[i] = wrap(item)
			}
			return members
		case []model.Record:
			return seq
		default:
			return []model.Record{wrap(v)}
		}
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

// wrap returns value as a model.Record, wrapping non-Record values.
func wrap(value any) model.Record {
	if rec, ok := value.(model.Record); ok {
		return rec
	}
	return model.Record{"input": value}
}

// Identity passes every item through unchanged.
type Identity struct{}

func (e *Identity) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	passthrough := channel.Transform(in, func(rec model.Record) model.Record { return rec })
	for rec := range passthrough {
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Empty yields nothing regardless of its input.
type Empty struct{}

func (e *Empty) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	<-channel.Drain(in)
	return nil
}
