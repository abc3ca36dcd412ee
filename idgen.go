package tracing

import (
	"context"
	"crypto/rand"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// pooledIDGenerator is an sdktrace.IDGenerator that pre-generates IDs
// in the background to amortize crypto/rand overhead on the hot path.
type pooledIDGenerator struct {
	traceIDs chan trace.TraceID
	spanIDs  chan trace.SpanID
	stopCh   chan struct{}
	mu       sync.Mutex
	closed   bool
}

// newPooledIDGenerator creates a generator with pool capacity scaled
// to the number of CPUs and starts its refill goroutines.
func newPooledIDGenerator() *pooledIDGenerator {
	capacity := runtime.NumCPU() * 100
	g := &pooledIDGenerator{
		traceIDs: make(chan trace.TraceID, capacity),
		spanIDs:  make(chan trace.SpanID, capacity),
		stopCh:   make(chan struct{}),
	}
	go g.refillTraceIDs()
	go g.refillSpanIDs()
	return g
}

// NewIDs returns identifiers for a new root span.
func (g *pooledIDGenerator) NewIDs(_ context.Context) (trace.TraceID, trace.SpanID) {
	var traceID trace.TraceID
	select {
	case traceID = <-g.traceIDs:
	default:
		// Pool empty, generate directly (fallback for burst load).
		traceID = makeTraceID()
	}
	return traceID, g.nextSpanID()
}

// NewSpanID returns an identifier for a new span in an existing trace.
func (g *pooledIDGenerator) NewSpanID(_ context.Context, _ trace.TraceID) trace.SpanID {
	return g.nextSpanID()
}

func (g *pooledIDGenerator) nextSpanID() trace.SpanID {
	select {
	case id := <-g.spanIDs:
		return id
	default:
		return makeSpanID()
	}
}

func (g *pooledIDGenerator) refillTraceIDs() {
	for {
		select {
		case <-g.stopCh:
			return
		case g.traceIDs <- makeTraceID():
		}
	}
}

func (g *pooledIDGenerator) refillSpanIDs() {
	for {
		select {
		case <-g.stopCh:
			return
		case g.spanIDs <- makeSpanID():
		}
	}
}

// Close stops the refill goroutines. Safe to call more than once.
func (g *pooledIDGenerator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.closed {
		close(g.stopCh)
		g.closed = true
	}
}

// makeTraceID draws a random, valid (non-zero) trace ID.
func makeTraceID() trace.TraceID {
	var id trace.TraceID
	for {
		_, _ = rand.Read(id[:])
		if id.IsValid() {
			return id
		}
	}
}

// makeSpanID draws a random, valid (non-zero) span ID.
func makeSpanID() trace.SpanID {
	var id trace.SpanID
	for {
		_, _ = rand.Read(id[:])
		if id.IsValid() {
			return id
		}
	}
}
