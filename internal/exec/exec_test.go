package exec

import (
	"context"
	"errors"
	"testing"

	"github.com/conduit-run/conduit/internal/build"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
)

// doubler emits two output items per input item, used to exercise
// items_in/items_out accounting across a stage boundary.
type doubler struct{}

func (doubler) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for r := range in {
		out <- r
		out <- r
	}
	return nil
}

// constSource ignores its (empty) bootstrap input and emits n fixed items,
// exercising the IsSource bootstrap path.
type constSource struct{ n int }

func (s constSource) IsSource() bool { return true }

func (s constSource) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for range in {
	}
	for i := 0; i < s.n; i++ {
		out <- model.Record{"i": i}
	}
	return nil
}

// failer always returns an error after draining its input.
type failer struct{}

func (failer) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for range in {
	}
	return errors.New("boom")
}

func registryWith(descs ...registry.Descriptor) *registry.Registry {
	r := registry.New()
	for _, d := range descs {
		r.Register(d)
	}
	return r
}

func buildPipeline(t *testing.T, reg *registry.Registry, ids ...string) *build.Pipeline {
	t.Helper()
	descs := make([]model.StageDescriptor, len(ids))
	for i, id := range ids {
		descs[i] = model.StageDescriptor{ID: id}
	}
	p, err := build.Build(descs, build.Options{Registry: reg})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return p
}

func TestRun_SingleStagePassesImplicitBootstrapItem(t *testing.T) {
	reg := registryWith(registry.Descriptor{
		ID:  "test.Double",
		New: func(map[string]any) (registry.Element, error) { return doubler{}, nil },
	})
	p := buildPipeline(t, reg, "test.Double")

	results, stats, err := Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results from doubling a single bootstrap item, got %d", len(results))
	}
	if stats.TotalItemsProcessed != 2 {
		t.Errorf("expected TotalItemsProcessed=2, got %d", stats.TotalItemsProcessed)
	}
}

func TestRun_SourceElementSkipsImplicitBootstrap(t *testing.T) {
	reg := registryWith(registry.Descriptor{
		ID:  "test.Source",
		New: func(map[string]any) (registry.Element, error) { return constSource{n: 3}, nil },
	})
	p := buildPipeline(t, reg, "test.Source")

	results, _, err := Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 items from a source emitting 3, got %d", len(results))
	}
}

func TestRun_ChainsMultipleStages(t *testing.T) {
	reg := registryWith(
		registry.Descriptor{ID: "test.Source", New: func(map[string]any) (registry.Element, error) { return constSource{n: 2}, nil }},
		registry.Descriptor{ID: "test.Double", New: func(map[string]any) (registry.Element, error) { return doubler{}, nil }},
	)
	p := buildPipeline(t, reg, "test.Source", "test.Double")

	results, _, err := Run(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 2 source items doubled to 4, got %d", len(results))
	}
}

func TestRun_StageErrorIsReturnedAndClassified(t *testing.T) {
	reg := registryWith(registry.Descriptor{
		ID:  "test.Fail",
		New: func(map[string]any) (registry.Element, error) { return failer{}, nil },
	})
	p := buildPipeline(t, reg, "test.Fail")

	_, _, err := Run(context.Background(), p)
	if err == nil {
		t.Fatal("expected the stage error to propagate")
	}
	re, ok := runerr.As(err)
	if !ok || re.Kind != runerr.KindItemError || re.StageID != "test.Fail" {
		t.Errorf("expected an ItemError classified against stage %q, got %v", "test.Fail", err)
	}
}

func TestRunWithBootstrap_SeedsFirstStageWithProvidedItems(t *testing.T) {
	reg := registryWith(registry.Descriptor{
		ID:  "test.Double",
		New: func(map[string]any) (registry.Element, error) { return doubler{}, nil },
	})
	p := buildPipeline(t, reg, "test.Double")

	boot := make(chan model.Record, 1)
	boot <- model.Record{"seed": true}
	close(boot)

	results, err := RunWithBootstrap(context.Background(), p, boot)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected the seeded item doubled to 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r["seed"] != true {
			t.Errorf("expected the bootstrap item to flow through unchanged, got %v", r)
		}
	}
}
