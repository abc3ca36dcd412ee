package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Tracer manages span lifecycle keyed by opaque trace identifiers.
// Safe for concurrent use by multiple goroutines; no operation blocks
// on network I/O. Export happens asynchronously behind the span
// processor the underlying otel tracer was built with.
type Tracer struct {
	tracer   trace.Tracer
	resolver *Resolver
	spans    *Registry
	logger   *zap.Logger
	identity []attribute.KeyValue

	scopeMu sync.Mutex
	scope   context.Context
}

// Identity carries the fixed service-identifying attributes stamped on
// every span. Supplied programmatically by the host at startup, not
// read from the environment.
type Identity struct {
	ClusterName string
	NodeName    string
}

// New creates a tracer on top of an otel tracer and a trace-context
// propagator. Each Tracer owns its registry of live spans, so separate
// instances never observe each other's traces.
func New(tracer trace.Tracer, propagator propagation.TextMapPropagator, identity Identity) *Tracer {
	return &Tracer{
		tracer:   tracer,
		resolver: NewResolver(propagator),
		spans:    NewRegistry(),
		logger:   zap.NewNop(),
		identity: []attribute.KeyValue{
			attribute.String(AttrClusterName, identity.ClusterName),
			attribute.String(AttrNodeName, identity.NodeName),
		},
	}
}

// WithLogger sets the logger used for trace-level diagnostics and
// returns the tracer.
func (t *Tracer) WithLogger(logger *zap.Logger) *Tracer {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// StartTrace begins a span for id, resolving its parent from the call
// context: a same-process handoff wins over inbound remote headers,
// and with neither the span is a root. On creation the new span's
// context is written back into the call context, both as the transient
// local handle for in-process children and as outbound wire headers
// for any network call the host makes next.
//
// Starting an id that is already active is an inert no-op. The only
// error is caller misuse: an attribute value outside
// {string, bool, int, int64, float64}.
func (t *Tracer) StartTrace(cc CallContext, id, name string, attrs map[string]any) error {
	kvs, err := spanAttributes(attrs)
	if err != nil {
		return err
	}
	kvs = append(kvs, t.identity...)
	if opaqueID := cc.GetHeader(OpaqueIDHeader); opaqueID != "" {
		kvs = append(kvs, attribute.String(AttrOpaqueID, opaqueID))
	}

	_, created := t.spans.GetOrCreate(id, func() *ActiveSpan {
		t.logger.Debug("tracing", zap.String("id", id), zap.String("name", name))

		ctx, span := t.tracer.Start(t.resolver.Parent(cc), name,
			trace.WithSpanKind(spanKindFor(attrs)),
			trace.WithAttributes(kvs...),
		)
		t.updateCallContext(cc, ctx)

		return &ActiveSpan{Span: span, Ctx: ctx}
	})
	if !created {
		t.logger.Debug("trace already active", zap.String("id", id))
	}
	return nil
}

// updateCallContext makes the new span reachable by its children. The
// context object itself serves same-process children; the injected
// headers serve children on other nodes.
func (t *Tracer) updateCallContext(cc CallContext, ctx context.Context) {
	cc.PutTransient(LocalContextKey, ctx)
	t.resolver.Inject(ctx, cc)
}

// SetAttribute records an attribute on the live span for id. The value
// type is checked first and rejected loudly even when the id is
// unknown; a missing id itself is not an error, since metadata may
// legitimately race with the trace being stopped.
func (t *Tracer) SetAttribute(id, key string, value any) error {
	kv, err := spanAttribute(key, value)
	if err != nil {
		return err
	}
	if live, ok := t.spans.Lookup(id); ok {
		live.Span.SetAttributes(kv)
	} else {
		t.logger.Debug("attribute on unknown trace", zap.String("id", id), zap.String("key", key))
	}
	return nil
}

// AddEvent records a named point-in-time event on the live span for
// id. No-op for unknown identifiers.
func (t *Tracer) AddEvent(id, eventName string) {
	if live, ok := t.spans.Lookup(id); ok {
		live.Span.AddEvent(eventName)
	}
}

// AddError records err as an exception event on the live span for id.
// No-op for unknown identifiers and nil errors.
func (t *Tracer) AddError(id string, err error) {
	if err == nil {
		return
	}
	if live, ok := t.spans.Lookup(id); ok {
		live.Span.RecordError(err)
	}
}

// StopTrace finalizes the span for id: the registry entry is removed
// atomically and the span handed to the export pipeline. Finalization
// is terminal; stopping an unknown or already-stopped id is a no-op,
// and mutations that lose the race to StopTrace are dropped.
func (t *Tracer) StopTrace(id string) {
	if live, ok := t.spans.Remove(id); ok {
		t.logger.Debug("finishing trace", zap.String("id", id))
		live.Span.End()
	}
}

// WithScope marks the span for id current on this tracer and returns a
// release func restoring the previous state. Intended for same-
// goroutine nesting in the few places an implicit current span is
// useful; most callers should pass call contexts instead. Never fails:
// an unknown id yields a no-op release, and releasing twice is safe.
func (t *Tracer) WithScope(id string) func() {
	live, ok := t.spans.Lookup(id)
	if !ok {
		return func() {}
	}

	t.scopeMu.Lock()
	prev := t.scope
	t.scope = live.Ctx
	t.scopeMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.scopeMu.Lock()
			t.scope = prev
			t.scopeMu.Unlock()
		})
	}
}

// CurrentContext returns the context of the span most recently marked
// current via WithScope, or context.Background() if none is.
func (t *Tracer) CurrentContext() context.Context {
	t.scopeMu.Lock()
	defer t.scopeMu.Unlock()
	if t.scope == nil {
		return context.Background()
	}
	return t.scope
}

// ActiveSpans reports the number of traces currently live. Populated
// on start, drained on stop, zero at rest.
func (t *Tracer) ActiveSpans() int {
	return t.spans.Len()
}
