package tracing

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"
)

// ActiveSpan bundles a live span with the context that carries it. The
// context is what same-process children use for parent linkage; the
// span is what mutation calls operate on. The underlying otel span is
// safe for concurrent use.
type ActiveSpan struct {
	Span trace.Span
	Ctx  context.Context
}

// registryEntry is the slot stored in the map for one identifier. The
// once arbitrates between a creating GetOrCreate and a racing Remove;
// live is nil until the factory has finished, or forever if a Remove
// claimed the slot first.
type registryEntry struct {
	once sync.Once
	live atomic.Pointer[ActiveSpan]
}

// Registry is a concurrent mapping from trace identifier to its live
// span. It is the single source of truth for whether a trace is
// active. Safe for concurrent use by multiple goroutines; independent
// identifiers never contend on a shared lock.
type Registry struct {
	entries sync.Map // string -> *registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// GetOrCreate returns the live span for id, running factory to create
// it if absent. The factory runs at most once per registered id:
// concurrent callers for the same id observe a single creation, and a
// caller that finds an existing entry gets it back with created=false
// and its factory never invoked. The factory must return non-nil.
func (r *Registry) GetOrCreate(id string, factory func() *ActiveSpan) (*ActiveSpan, bool) {
	for {
		v, _ := r.entries.LoadOrStore(id, &registryEntry{})
		e := v.(*registryEntry)

		created := false
		e.once.Do(func() {
			e.live.Store(factory())
			created = true
		})

		if live := e.live.Load(); live != nil {
			return live, created
		}

		// A concurrent Remove claimed the slot before the factory could
		// run and has already deleted it from the map. Retry on a fresh
		// slot.
	}
}

// Lookup returns the live span for id, or ok=false if the identifier
// is unknown, already removed, or still being created. Never blocks.
func (r *Registry) Lookup(id string) (*ActiveSpan, bool) {
	v, ok := r.entries.Load(id)
	if !ok {
		return nil, false
	}
	live := v.(*registryEntry).live.Load()
	if live == nil {
		return nil, false
	}
	return live, true
}

// Remove atomically detaches and returns the live span for id, or
// ok=false if none is registered. After Remove returns, no Lookup can
// observe the span. A Remove that races the creating GetOrCreate
// either returns the new span or reports not-found; it never returns a
// partially constructed value.
func (r *Registry) Remove(id string) (*ActiveSpan, bool) {
	v, ok := r.entries.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	e := v.(*registryEntry)

	// Claim the slot if the factory has not started; this poisons the
	// entry and forces the racing GetOrCreate to start over.
	e.once.Do(func() {})

	live := e.live.Load()
	if live == nil {
		return nil, false
	}
	return live, true
}

// Len reports the number of live spans. Entries whose creation has not
// completed are not counted.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, v any) bool {
		if v.(*registryEntry).live.Load() != nil {
			n++
		}
		return true
	})
	return n
}
