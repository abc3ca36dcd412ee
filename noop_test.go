package tracing

import (
	"strconv"
	"sync/atomic"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace/noop"
)

// newNoopBridge builds a tracer over a no-op otel tracer, isolating
// the bridge's own overhead from SDK span costs.
func newNoopBridge() *Tracer {
	return New(noop.NewTracerProvider().Tracer("bench"), propagation.TraceContext{}, testIdentity)
}

func TestNoopTracerIsSafe(t *testing.T) {
	tracer := newNoopBridge()
	cc := NewCallContext()

	if err := tracer.StartTrace(cc, "req-1", "op", map[string]any{"http.method": "GET"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tracer.SetAttribute("req-1", "k", "v"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tracer.AddEvent("req-1", "e")

	release := tracer.WithScope("req-1")
	release()

	tracer.StopTrace("req-1")
	if got := tracer.ActiveSpans(); got != 0 {
		t.Errorf("expected drained registry, got %d", got)
	}
}

func BenchmarkLifecycle(b *testing.B) {
	tracer := newNoopBridge()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		id := strconv.Itoa(i)
		cc := NewCallContext()
		_ = tracer.StartTrace(cc, id, "bench-op", nil)
		_ = tracer.SetAttribute(id, "k", "v")
		tracer.StopTrace(id)
	}
}

func BenchmarkMutations(b *testing.B) {
	tracer := newNoopBridge()
	_ = tracer.StartTrace(NewCallContext(), "bench", "bench-op", nil)
	defer tracer.StopTrace("bench")

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tracer.SetAttribute("bench", "k", int64(1))
			tracer.AddEvent("bench", "tick")
		}
	})
}

func BenchmarkConcurrentLifecycle(b *testing.B) {
	tracer := newNoopBridge()

	var next atomic.Int64

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id := strconv.FormatInt(next.Add(1), 10)
			cc := NewCallContext()
			_ = tracer.StartTrace(cc, id, "bench-op", nil)
			tracer.StopTrace(id)
		}
	})
}
