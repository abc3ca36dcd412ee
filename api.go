// Package tracing bridges opaque start/stop/annotate trace calls onto
// OpenTelemetry spans.
//
// The host application issues trace lifecycle calls keyed by opaque
// string identifiers, from arbitrary goroutines, without understanding
// span contexts, parent linkage, or wire propagation formats. This
// package owns the mapping from identifier to live span, resolves
// parent/child relationships within the process and across network
// boundaries, and exports finished spans asynchronously.
//
// Core Components:
//   - Tracer: starts, mutates, and finalizes spans by identifier.
//   - Registry: concurrent identifier -> live span mapping.
//   - Resolver: parent resolution and outbound header injection.
//   - Provider: OpenTelemetry SDK wiring (exporter, batching, IDs).
//   - Collector: in-process span exporter for hosts that want spans
//     in memory instead of on the wire.
//
// Basic Usage:
//
//	provider, err := tracing.NewProvider(ctx, cfg, logger)
//	if err != nil { ... }
//	defer provider.Shutdown(ctx)
//
//	tracer := provider.NewTracer(tracing.Identity{
//		ClusterName: "prod-eu",
//		NodeName:    "node-3",
//	})
//
//	cc := tracing.NewCallContext()
//	tracer.StartTrace(cc, "req-1", "GET /index", map[string]any{
//		"http.method": "GET",
//	})
//	tracer.SetAttribute("req-1", "rows_returned", 42)
//	tracer.StopTrace("req-1")
//
// Thread Safety:
//
// Every Tracer operation is safe for concurrent use by multiple
// goroutines with no external locking. Starting the same identifier
// twice never produces two spans, and stopping an unknown or
// already-stopped identifier is a no-op.
package tracing

// Propagation and call-context keys. Only TraceParentHeader and
// TraceStateHeader ever cross a process boundary; every other key is
// same-process-only. Inbound copies of these keys are read under their
// ParentPrefix-ed names so that a call's own inbound headers are never
// mistaken for freshly generated outbound ones.
const (
	// TraceParentHeader is the W3C trace context parent header.
	TraceParentHeader = "traceparent"

	// TraceStateHeader is the W3C trace context state header. Only
	// meaningful alongside TraceParentHeader.
	TraceStateHeader = "tracestate"

	// LocalContextKey is the transient call-context key holding the
	// context of the current span, for same-process parent handoff.
	// The value is an in-process object handle and is never serialized.
	LocalContextKey = "apm.local.context"

	// ParentPrefix marks inbound keys in a call context. The host
	// stashes received headers and handed-off transients under this
	// prefix before dispatching work.
	ParentPrefix = "parent_"

	// OpaqueIDHeader carries the caller-supplied request identity.
	OpaqueIDHeader = "X-Opaque-Id"
)

// Span attribute keys set by the tracer on every span.
const (
	AttrClusterName = "es.cluster.name"
	AttrNodeName    = "es.node.name"
	AttrOpaqueID    = "es.x-opaque-id"
)

// CallContext is the host's per-invocation key/value carrier. The
// tracer treats it as borrowed: it reads inbound parent keys under
// their ParentPrefix-ed names and writes the unprefixed outbound keys.
//
// Transients hold arbitrary in-process values and never leave the
// process. Headers are plain strings safe to transmit on a network
// call.
type CallContext interface {
	GetTransient(key string) any
	PutTransient(key string, value any)
	GetHeader(key string) string
	PutHeader(key, value string)
}
