package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Resolver decides what a new span's parent is and writes span
// identity back into a call context. The wire format itself is owned
// by the propagator; the resolver only enforces which keys may cross a
// process boundary.
type Resolver struct {
	propagator propagation.TextMapPropagator
}

// NewResolver creates a resolver using the given propagator, typically
// propagation.TraceContext.
func NewResolver(propagator propagation.TextMapPropagator) *Resolver {
	return &Resolver{propagator: propagator}
}

// Parent returns the context to parent a new span on.
//
// A same-process handoff always wins: the transient local context is
// the literal parent object, cheaper and more precise than re-decoding
// headers, and stale remote headers from an unrelated antecedent call
// must never shadow it. With no handoff, a remote parent is decoded
// from the inbound trace headers. With neither, the returned context
// carries no span and the new span becomes a root.
func (r *Resolver) Parent(cc CallContext) context.Context {
	if v := cc.GetTransient(ParentPrefix + LocalContextKey); v != nil {
		if ctx, ok := v.(context.Context); ok {
			return ctx
		}
	}

	traceParent, _ := cc.GetTransient(ParentPrefix + TraceParentHeader).(string)
	if traceParent == "" {
		return context.Background()
	}

	carrier := propagation.MapCarrier{TraceParentHeader: traceParent}
	if state, ok := cc.GetTransient(ParentPrefix + TraceStateHeader).(string); ok && state != "" {
		carrier[TraceStateHeader] = state
	}

	// A malformed traceparent extracts to a context without a valid
	// span, which downstream turns into a root span rather than an
	// error.
	return r.propagator.Extract(context.Background(), carrier)
}

// Inject writes the span identity carried by ctx into the call
// context's outbound headers. Only TraceParentHeader and
// TraceStateHeader pass the filter; a propagator that tries to write
// anything else is silently ignored.
func (r *Resolver) Inject(ctx context.Context, cc CallContext) {
	r.propagator.Inject(ctx, headerCarrier{cc: cc})
}

// headerCarrier adapts a CallContext to the propagator's carrier
// interface, filtering writes down to the two supported keys.
type headerCarrier struct {
	cc CallContext
}

func (c headerCarrier) Get(key string) string {
	return c.cc.GetHeader(key)
}

func (c headerCarrier) Set(key, value string) {
	if key == TraceParentHeader || key == TraceStateHeader {
		c.cc.PutHeader(key, value)
	}
}

func (c headerCarrier) Keys() []string {
	return []string{TraceParentHeader, TraceStateHeader}
}
