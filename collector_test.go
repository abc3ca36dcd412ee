package tracing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// stubSpans fabricates finished spans without an export pipeline.
func stubSpans(n int) []sdktrace.ReadOnlySpan {
	spans := make([]sdktrace.ReadOnlySpan, 0, n)
	for i := 0; i < n; i++ {
		spans = append(spans, tracetest.SpanStub{Name: fmt.Sprintf("span-%d", i)}.Snapshot())
	}
	return spans
}

func TestCollectorBuffersAndDrains(t *testing.T) {
	c := NewCollector("test", 10)
	defer func() { _ = c.Shutdown(context.Background()) }()

	if err := c.ExportSpans(context.Background(), stubSpans(3)); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if got := c.Count(); got != 3 {
		t.Errorf("expected 3 buffered spans, got %d", got)
	}

	drained := c.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained spans, got %d", len(drained))
	}
	if drained[0].Name() != "span-0" {
		t.Errorf("expected span-0 first, got %s", drained[0].Name())
	}
	if got := c.Count(); got != 0 {
		t.Errorf("expected empty buffer after drain, got %d", got)
	}
	if c.Drain() != nil {
		t.Error("expected nil from draining an empty collector")
	}
}

func TestCollectorDropsBeyondCapacity(t *testing.T) {
	c := NewCollector("test", 2)
	defer func() { _ = c.Shutdown(context.Background()) }()

	if err := c.ExportSpans(context.Background(), stubSpans(5)); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if got := c.Count(); got != 2 {
		t.Errorf("expected buffer capped at 2, got %d", got)
	}
	if got := c.DroppedCount(); got != 3 {
		t.Errorf("expected 3 dropped spans, got %d", got)
	}
}

func TestCollectorShutdown(t *testing.T) {
	c := NewCollector("test", 10)

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	// Shutdown is idempotent.
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected second shutdown error: %v", err)
	}

	// Exports after shutdown are dropped, not buffered.
	if err := c.ExportSpans(context.Background(), stubSpans(2)); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if got := c.Count(); got != 0 {
		t.Errorf("expected no buffering after shutdown, got %d", got)
	}
	if got := c.DroppedCount(); got != 2 {
		t.Errorf("expected 2 dropped spans, got %d", got)
	}
}

func TestCollectorFlushLoop(t *testing.T) {
	clock := clockz.NewFakeClock()
	c := NewCollector("flush", 100).WithClock(clock)

	batches := make(chan []sdktrace.ReadOnlySpan, 4)
	if err := c.OnFlush(100*time.Millisecond, func(spans []sdktrace.ReadOnlySpan) {
		batches <- spans
	}); err != nil {
		t.Fatalf("unexpected OnFlush error: %v", err)
	}

	if err := c.ExportSpans(context.Background(), stubSpans(2)); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}

	for !clock.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
	clock.Advance(100 * time.Millisecond)
	clock.BlockUntilReady()

	select {
	case batch := <-batches:
		if len(batch) != 2 {
			t.Errorf("expected 2 spans in flush batch, got %d", len(batch))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush batch")
	}

	// Spans buffered at shutdown are drained to the handler.
	if err := c.ExportSpans(context.Background(), stubSpans(1)); err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	select {
	case batch := <-batches:
		if len(batch) != 1 {
			t.Errorf("expected 1 span in final batch, got %d", len(batch))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for final batch")
	}
}

func TestCollectorOnFlushValidation(t *testing.T) {
	c := NewCollector("test", 10)
	defer func() { _ = c.Shutdown(context.Background()) }()

	if err := c.OnFlush(time.Second, nil); err == nil {
		t.Error("expected error for nil handler")
	}
	if err := c.OnFlush(0, func([]sdktrace.ReadOnlySpan) {}); err == nil {
		t.Error("expected error for non-positive interval")
	}

	if err := c.OnFlush(time.Second, func([]sdktrace.ReadOnlySpan) {}); err != nil {
		t.Fatalf("unexpected error starting flush loop: %v", err)
	}
	if err := c.OnFlush(time.Second, func([]sdktrace.ReadOnlySpan) {}); err == nil {
		t.Error("expected error starting a second flush loop")
	}
}

func TestCollectorName(t *testing.T) {
	c := NewCollector("search-spans", 10)
	defer func() { _ = c.Shutdown(context.Background()) }()

	if got := c.Name(); got != "search-spans" {
		t.Errorf("expected search-spans, got %s", got)
	}
}
