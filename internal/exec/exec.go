// Package exec implements C7, the streaming executor: it drives a built
// pipeline (internal/build.Pipeline) as a chain of channel-connected
// stages, applying coercion (internal/coerce) and defaults-merge
// (internal/merge) on every edge, enforcing the open/process/close
// element lifecycle, and accumulating per-stage metrics.
//
// The channel-to-channel chaining is grounded directly on the teacher's
// pipe.Pipe[In,Out]/pipe.Apply composition
// (_examples/fxsml-gopipe/pipe/pipe.go): an unbuffered Go channel send
// blocks until its receiver pulls, which is exactly "one in-flight item
// per edge" (§3) without any extra bookkeeping -- the idiomatic-Go
// expression of "lazy pull with backpressure".
package exec

import (
	"context"
	"sync"
	"time"

	"github.com/conduit-run/conduit/channel"
	"github.com/conduit-run/conduit/internal/build"
	"github.com/conduit-run/conduit/internal/coerce"
	"github.com/conduit-run/conduit/internal/merge"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
	"github.com/conduit-run/conduit/pipe/middleware"
)

// Run drives p to completion, pulling every output item and returning them
// collected (used by the CLI, the HTTP driver and tests); Stream serves
// callers that consume output lazily.
func Run(ctx context.Context, p *build.Pipeline) ([]model.Record, model.RunStats, error) {
	out, stats, errCh := Stream(ctx, p)
	var results []model.Record
	for r := range out {
		results = append(results, r)
	}
	if err := <-errCh; err != nil {
		return results, stats(), err
	}
	return results, stats(), nil
}

// Stream starts p and returns its output channel, a stats accessor safe to
// call after out is drained, and a 1-buffered error channel receiving the
// run's terminal error (nil on success).
func Stream(ctx context.Context, p *build.Pipeline) (<-chan model.Record, func() model.RunStats, <-chan error) {
	var bootstrap <-chan model.Record
	if len(p.Stages) > 0 && p.Stages[0].IsSource {
		empty := make(chan model.Record)
		close(empty)
		bootstrap = empty
	} else {
		boot := make(chan model.Record, 1)
		boot <- model.Record{}
		close(boot)
		bootstrap = boot
	}
	return streamWithBootstrap(ctx, p, bootstrap)
}

// RunWithBootstrap runs p to completion seeding its first stage with items
// from bootstrap instead of the usual implicit singleton empty record,
// used by the Fork coordinator (internal/elements/flow) to feed a path
// sub-pipeline the parent's single item (§4.8).
func RunWithBootstrap(ctx context.Context, p *build.Pipeline, bootstrap <-chan model.Record) ([]model.Record, error) {
	out, _, errCh := streamWithBootstrap(ctx, p, bootstrap)
	var results []model.Record
	for r := range out {
		results = append(results, r)
	}
	return results, <-errCh
}

func streamWithBootstrap(ctx context.Context, p *build.Pipeline, cur <-chan model.Record) (<-chan model.Record, func() model.RunStats, <-chan error) {
	acc := newAccumulator(len(p.Stages))
	errCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	firstErr := newErrBox()

	for i := range p.Stages {
		stage := p.Stages[i]

		stageIn := applyCoercionAndDefaults(cur, stage)
		stageOut := make(chan model.Record)

		wg.Add(1)
		go func(stage build.Stage, in <-chan model.Record, out chan<- model.Record) {
			defer wg.Done()
			defer close(out)
			runStage(ctx, stage, in, out, acc, firstErr, cancel)
		}(stage, stageIn, stageOut)

		cur = countOutputs(stageOut, acc, stage.Index)
	}

	final := make(chan model.Record)
	go func() {
		defer close(final)
		runStart := time.Now()
		for r := range cur {
			select {
			case final <- r:
			case <-ctx.Done():
			}
		}
		wg.Wait()
		acc.runDuration = time.Since(runStart)
		cancel()
		errCh <- firstErr.get()
		close(errCh)
	}()

	return final, acc.snapshot, errCh
}

func runStage(ctx context.Context, stage build.Stage, in <-chan model.Record, out chan<- model.Record, acc *accumulator, firstErr *errBox, cancel context.CancelFunc) {
	if opener, ok := stage.Element.(registry.Opener); ok {
		if err := opener.Open(ctx); err != nil {
			firstErr.setOnce(runerr.Wrap(runerr.KindElementInitError, err, "opening %q", stage.ID).WithStage(stage.Index, stage.ID))
			cancel()
			drain(in)
			return
		}
	}
	if closer, ok := stage.Element.(registry.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				firstErr.setOnce(runerr.Wrap(runerr.KindResourceError, err, "closing %q", stage.ID).WithStage(stage.Index, stage.ID))
			}
		}()
	}

	call := func(ctx context.Context, _ struct{}) ([]struct{}, error) {
		return nil, stage.Element.Process(ctx, in, out)
	}
	protected := middleware.Recover[struct{}, struct{}]()(call)
	logged := middleware.Log[struct{}, struct{}](middleware.LogConfig{
		Args: []any{"stage", stage.ID},
	})(protected)
	timed := middleware.MetricsMiddleware[struct{}, struct{}](func(m *middleware.Metrics) {
		acc.setElapsed(stage.Index, m.Duration)
	})(logged)

	if _, err := timed(ctx, struct{}{}); err != nil {
		acc.addError(stage.Index)
		firstErr.setOnce(runerr.Wrap(runerr.KindItemError, err, "processing in %q", stage.ID).WithStage(stage.Index, stage.ID))
		cancel()
	}
	drain(in)
}

// drain discards any remaining items on in so upstream stages (whose
// sends are unbuffered) don't block forever after a downstream abort,
// reusing the teacher's channel.Drain (channel/drain.go) rather than a
// hand-rolled range loop.
func drain(in <-chan model.Record) {
	<-channel.Drain(in)
}

// applyCoercionAndDefaults wraps prev with the per-item coercion
// (internal/coerce) and defaults-merge (internal/merge, C5) the next
// stage's schema requires, expressed as the teacher's channel.Transform
// (channel/transform.go) with the per-item work folded into its handle
// closure.
func applyCoercionAndDefaults(prev <-chan model.Record, stage build.Stage) <-chan model.Record {
	return channel.Transform(prev, func(item model.Record) model.Record {
		var rec model.Record
		if len(stage.InputSchema) == 0 {
			rec = item
		} else {
			rec = coerce.ToRecord(item, stage.InputSchema)
		}
		return merge.Merge(stage.CtorDefaults, rec)
	})
}

// countOutputs wraps in with the teacher's channel.Transform, folding the
// per-item output counter into the identity handle closure instead of a
// bespoke forwarding goroutine.
func countOutputs(in <-chan model.Record, acc *accumulator, stageIndex int) <-chan model.Record {
	return channel.Transform(in, func(item model.Record) model.Record {
		acc.addOutput(stageIndex)
		return item
	})
}

type accumulator struct {
	mu          sync.Mutex
	metrics     []model.ElementMetrics
	runDuration time.Duration
}

func newAccumulator(n int) *accumulator {
	a := &accumulator{metrics: make([]model.ElementMetrics, n)}
	return a
}

func (a *accumulator) addOutput(i int) {
	a.mu.Lock()
	a.metrics[i].ItemsOut++
	if i+1 < len(a.metrics) {
		a.metrics[i+1].ItemsIn++
	}
	a.mu.Unlock()
}

func (a *accumulator) addError(i int) {
	a.mu.Lock()
	a.metrics[i].Errors++
	a.mu.Unlock()
}

func (a *accumulator) setElapsed(i int, d time.Duration) {
	a.mu.Lock()
	a.metrics[i].Elapsed = d
	a.mu.Unlock()
}

func (a *accumulator) snapshot() model.RunStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	ms := make([]model.ElementMetrics, len(a.metrics))
	for i, m := range a.metrics {
		ms[i] = m
		if i == len(a.metrics)-1 {
			total = m.ItemsOut
		}
	}
	return model.RunStats{
		Duration:            a.runDuration,
		TotalItemsProcessed: total,
		ElementMetrics:      ms,
	}
}

type errBox struct {
	mu  sync.Mutex
	err error
}

func newErrBox() *errBox { return &errBox{} }

func (b *errBox) setOnce(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
}

func (b *errBox) get() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}
