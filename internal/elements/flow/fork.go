// Package flow implements the "Flow" built-in elements: Fork, Iterate,
// Identity, Empty (§4.9).
package flow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/conduit-run/conduit/channel"
	"github.com/conduit-run/conduit/internal/build"
	"github.com/conduit-run/conduit/internal/exec"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
)

func init() {
	registry.Register(registry.Descriptor{
		ID:      "conduit.Fork",
		Summary: "fan input into named sub-pipelines, join one record per input item",
		New:     newFork,
	})
}

// Fork implements C8. Each named path is itself a built sub-pipeline,
// constructed once at build time (grounded on the original's Fork.paths
// setter building one child Pipeline per label,
// _examples/original_source/src/conduit/elements/fork.py), and run against
// exactly one input item per parent item at process time.
type Fork struct {
	labels    []string
	pipelines map[string]*build.Pipeline
}

func newFork(args map[string]any) (registry.Element, error) {
	rawPaths, _ := args["paths"].(map[string][]model.StageDescriptor)
	reg, _ := args["__registry"].(*registry.Registry)
	runArgs, _ := args["__args"].(map[string]string)
	if reg == nil {
		reg = registry.Default
	}

	f := &Fork{pipelines: make(map[string]*build.Pipeline, len(rawPaths))}
	for label := range rawPaths {
		f.labels = append(f.labels, label)
	}
	sort.Strings(f.labels)

	for _, label := range f.labels {
		p, err := build.Build(rawPaths[label], build.Options{Registry: reg, Args: runArgs})
		if err != nil {
			return nil, fmt.Errorf("fork path %q: %w", label, err)
		}
		f.pipelines[label] = p
	}
	return f, nil
}

// Process runs every path for each input item before moving to the next
// item (item-wise synchronization, matching the original's per-item
// barrier in Fork.process). Paths run concurrently; the outer item order
// is preserved because items are still handled one at a time in the
// upstream range loop (§5 ordering: "the outer order is preserved").
func (f *Fork) Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error {
	for item := range in {
		joined, err := f.runPaths(ctx, item)
		if err != nil {
			return err
		}
		select {
		case out <- joined:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// runPaths fans item out to every path using the teacher's
// channel.Broadcast (_examples/fxsml-gopipe/channel/broadcast.go): a single
// one-item source channel is duplicated into one channel per path, each
// consumed by its own sub-pipeline bootstrap, so every path goroutine reads
// the same item independently and in parallel.
func (f *Fork) runPaths(ctx context.Context, item model.Record) (model.Record, error) {
	type result struct {
		label  string
		values []model.Record
		err    error
	}
	results := make([]result, len(f.labels))

	source := make(chan model.Record, 1)
	source <- item
	close(source)
	branches := channel.Broadcast(source, len(f.labels))

	var wg sync.WaitGroup
	for i, label := range f.labels {
		wg.Add(1)
		go func(i int, label string, bootstrap <-chan model.Record) {
			defer wg.Done()
			sub := &singleInputPipeline{pipeline: f.pipelines[label], bootstrap: bootstrap}
			values, err := sub.run(ctx)
			results[i] = result{label: label, values: values, err: err}
		}(i, label, branches[i])
	}
	wg.Wait()

	joined := make(model.Record, len(f.labels))
	for _, r := range results {
		if r.err != nil {
			return nil, runerr.Wrap(runerr.KindItemError, r.err, "fork path %q", r.label)
		}
		switch len(r.values) {
		case 0:
			joined[r.label] = nil
		case 1:
			joined[r.label] = r.values[0]
		default:
			joined[r.label] = r.values
		}
	}
	return joined, nil
}

// IsSource reports false: Fork always consumes its parent's items.
func (f *Fork) IsSource() bool { return false }

// singleInputPipeline runs a sub-pipeline against a single bootstrap item
// instead of the normal implicit empty singleton, since Fork paths
// receive the parent item itself as their input (§4.8: "an input sequence
// consisting of the single item x").
type singleInputPipeline struct {
	pipeline  *build.Pipeline
	bootstrap <-chan model.Record
}

func (s *singleInputPipeline) run(ctx context.Context) ([]model.Record, error) {
	// Feed the first stage the bootstrap item directly by running the
	// full path pipeline through exec.RunWithBootstrap: the first stage
	// is fed the parent item instead of an empty record. exec.Stream's bootstrap logic always
	// seeds a single empty record unless Stages[0].IsSource; Fork's path
	// pipelines are never sources, so the first stage always receives
	// exactly one upstream item -- we substitute that item here.
	return exec.RunWithBootstrap(ctx, s.pipeline, s.bootstrap)
}
