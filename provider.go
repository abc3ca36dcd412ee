package tracing

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/credentials"
)

const instrumentationName = "github.com/rrva/elasticsearch-tracing-plugin"

// Provider owns the OpenTelemetry SDK pipeline: exporter, batch
// processor, resource identity, and ID generation. It is the component
// a host starts once and shuts down on exit; Tracers are cheap views
// on top of it.
type Provider struct {
	sdk        *sdktrace.TracerProvider
	propagator propagation.TextMapPropagator
	idgen      *pooledIDGenerator
	logger     *zap.Logger
}

// ProviderOption customizes provider construction.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	exporter sdktrace.SpanExporter
}

// WithSpanExporter replaces the default OTLP exporter, e.g. with a
// Collector for in-process export or a test recorder. The provider
// still owns batching on top of it.
func WithSpanExporter(exporter sdktrace.SpanExporter) ProviderOption {
	return func(o *providerOptions) {
		o.exporter = exporter
	}
}

// NewProvider builds the export pipeline. Spans flow from Tracers
// through a batch processor to the exporter; nothing in that path
// blocks a caller of the tracing API. A nil logger disables logging.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger, opts ...ProviderOption) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var o providerOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Export failures surface here and nowhere else; tracing degrades
	// to "nothing recorded" rather than disrupting the host.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("span export failure", zap.Error(err))
	}))

	exporter := o.exporter
	if exporter == nil {
		logger.Info("initializing otel tracing",
			zap.String("endpoint", cfg.Endpoint),
			zap.Bool("insecure", cfg.Insecure),
		)
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		} else {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(
				credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12}),
			))
		}
		var err error
		exporter, err = otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
		}
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	idgen := newPooledIDGenerator()

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatch),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithIDGenerator(idgen),
	)

	return &Provider{
		sdk:        sdk,
		propagator: propagation.TraceContext{},
		idgen:      idgen,
		logger:     logger,
	}, nil
}

// Tracer returns the underlying otel tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.sdk.Tracer(instrumentationName)
}

// Propagator returns the wire-format codec the provider was built
// with.
func (p *Provider) Propagator() propagation.TextMapPropagator {
	return p.propagator
}

// NewTracer builds a lifecycle tracer on this provider's pipeline,
// stamped with the given identity.
func (p *Provider) NewTracer(identity Identity) *Tracer {
	return New(p.Tracer(), p.propagator, identity).WithLogger(p.logger)
}

// ForceFlush drains buffered spans to the exporter, honoring ctx.
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the pipeline. Spans finished after
// Shutdown are dropped by the SDK.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := p.sdk.Shutdown(ctx)
	p.idgen.Close()
	return err
}
