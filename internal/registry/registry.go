// Package registry implements C4, the element registry: a map from dotted
// element id to the metadata needed to build and validate a stage
// (constructor parameters, input schema, output shape) plus the factory
// that instantiates the element itself.
//
// Grounded on the Go idiom of driver registration via package init()
// (as in database/sql), which is the idiomatic substitute for the
// original's reflection-based dynamic import
// (_examples/original_source/src/conduit/common.py's instantiate(),
// importlib.import_module + getattr) -- Go has no portable equivalent of
// importing-by-dotted-string-at-runtime, so built-in elements self-register
// from their own init() function against a single process-wide registry.
// Third-party elements are added the same way, by an explicit Register
// call; the registry does not read CONDUIT_SEARCH_PATHS or load plugins.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/conduit-run/conduit/internal/model"
)

// Factory constructs a new Element instance from a stage's already
// defaults-separated constructor arguments.
type Factory func(ctorArgs map[string]any) (Element, error)

// Element is the runtime contract every built-in or third-party element
// implements: a lazy stream-to-stream transform plus an optional resource
// lifecycle (§4.7).
type Element interface {
	// Process consumes in and produces out; out is closed by the caller
	// per the executor's lifecycle (C7). Process must return once in is
	// closed and fully drained, or ctx is done.
	Process(ctx context.Context, in <-chan model.Record, out chan<- model.Record) error
}

// Opener is implemented by elements that acquire a resource before the
// first pull (e.g. opening a socket or file handle).
type Opener interface {
	Open(ctx context.Context) error
}

// Closer is implemented by elements that release a resource after the
// last pull or on abort; guaranteed to be called exactly once if Open
// succeeded (§8 universal property 5).
type Closer interface {
	Close() error
}

// Source marks an element that produces its own first-stage input instead
// of consuming the implicit bootstrap singleton (§3's "the first stage may
// receive an implicit singleton empty item").
type Source interface {
	IsSource() bool
}

// Descriptor is the registry's static metadata about one element type.
type Descriptor struct {
	ID          string
	Summary     string
	CtorParams  model.Schema
	InputSchema model.Schema
	Buffered    bool
	New         Factory
}

// Registry maps dotted element id to Descriptor. The zero value is usable;
// concurrent Register calls (from competing package init()s) are
// serialized by an internal mutex.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Descriptor
}

// Default is the process-wide registry built-in elements register
// themselves against from their init() functions.
var Default = New()

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byID: make(map[string]Descriptor)}
}

// Register adds d to the registry. Duplicate ids are a build-time error
// (§3 invariant: "duplicate registration is a build-time error"), reported
// immediately via panic since registration happens at init() time, before
// any build can be attempted, mirroring the teacher's fail-fast
// already-started guards (_examples/fxsml-gopipe/pipe/pipe.go's
// ErrAlreadyStarted).
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[d.ID]; exists {
		panic(fmt.Sprintf("registry: duplicate element id %q", d.ID))
	}
	r.byID[d.ID] = d
}

// Lookup returns the Descriptor for id, if registered.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// IDs returns every registered element id.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}

// All returns every registered Descriptor.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	return out
}

// Register adds d to the Default registry; called from built-in element
// package init()s.
func Register(d Descriptor) { Default.Register(d) }
