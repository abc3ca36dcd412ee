package tracing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Collector is an in-process export sink: an sdktrace.SpanExporter
// that buffers finished spans in memory with backpressure protection.
// Hosts that do not ship spans to a network collector plug it into the
// provider via WithSpanExporter and either Drain on their own schedule
// or register a periodic flush handler.
//
// Safe for concurrent use by multiple goroutines.
type Collector struct {
	name        string
	clock       clockz.Clock
	mu          sync.Mutex
	spans       []sdktrace.ReadOnlySpan
	maxBuffered int
	dropped     atomic.Int64
	closed      atomic.Bool

	flushStarted atomic.Bool
	stopCh       chan struct{}
	done         chan struct{}
}

// NewCollector creates a collector holding at most maxBuffered spans.
// Spans exported beyond that are dropped and counted rather than
// blocking the export pipeline.
func NewCollector(name string, maxBuffered int) *Collector {
	return &Collector{
		name:        name,
		clock:       clockz.RealClock,
		spans:       make([]sdktrace.ReadOnlySpan, 0, 8),
		maxBuffered: maxBuffered,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// WithClock returns the collector using the specified clock. Enables
// clock injection for deterministic flush-loop tests; call before
// OnFlush.
func (c *Collector) WithClock(clock clockz.Clock) *Collector {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// ExportSpans buffers a batch of finished spans. Never blocks; spans
// that do not fit are dropped. Part of the sdktrace.SpanExporter
// contract.
func (c *Collector) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	if c.closed.Load() {
		c.dropped.Add(int64(len(spans)))
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, span := range spans {
		if len(c.spans) >= c.maxBuffered {
			c.dropped.Add(1)
			continue
		}
		c.spans = append(c.spans, span)
	}
	return nil
}

// OnFlush starts a loop that drains the buffer every interval and
// hands the batch to handler. At most one flush loop per collector.
func (c *Collector) OnFlush(interval time.Duration, handler func([]sdktrace.ReadOnlySpan)) error {
	if handler == nil {
		return errors.New("handler must not be nil")
	}
	if interval <= 0 {
		return errors.New("interval must be > 0")
	}
	if !c.flushStarted.CompareAndSwap(false, true) {
		return errors.New("flush loop already started")
	}

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.stopCh:
				// Final drain so buffered spans survive shutdown.
				if spans := c.Drain(); len(spans) > 0 {
					handler(spans)
				}
				return
			case <-c.clock.After(interval):
				if spans := c.Drain(); len(spans) > 0 {
					handler(spans)
				}
			}
		}
	}()
	return nil
}

// Shutdown stops the flush loop and marks the collector closed. Spans
// exported afterwards are dropped. Part of the sdktrace.SpanExporter
// contract; safe to call more than once.
func (c *Collector) Shutdown(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stopCh)

	if !c.flushStarted.Load() {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain returns all buffered spans and clears the buffer.
func (c *Collector) Drain() []sdktrace.ReadOnlySpan {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.spans) == 0 {
		return nil
	}
	out := c.spans
	c.spans = make([]sdktrace.ReadOnlySpan, 0, 8)
	return out
}

// Name returns the collector's name.
func (c *Collector) Name() string {
	return c.name
}

// Count returns the current number of buffered spans.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spans)
}

// DroppedCount returns the total number of spans dropped because the
// buffer was full or the collector closed.
func (c *Collector) DroppedCount() int64 {
	return c.dropped.Load()
}
