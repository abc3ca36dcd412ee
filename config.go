package tracing

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds exporter and batching configuration, loaded from the
// environment. The only setting a deployment normally touches is
// Endpoint.
type Config struct {
	// Endpoint is the OTLP gRPC collector address. Jaeger accepts OTLP
	// natively on this port.
	Endpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`

	// Insecure disables transport security towards the collector.
	Insecure bool `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	// ServiceName identifies this service in the backend.
	ServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"elasticsearch"`

	// Batch processor tuning. The defaults match the otel SDK's.
	BatchTimeout   time.Duration `envconfig:"OTEL_BSP_SCHEDULE_DELAY" default:"5s"`
	MaxExportBatch int           `envconfig:"OTEL_BSP_MAX_EXPORT_BATCH_SIZE" default:"512"`
	MaxQueueSize   int           `envconfig:"OTEL_BSP_MAX_QUEUE_SIZE" default:"2048"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load tracing config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the documented defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		Endpoint:       "localhost:4317",
		Insecure:       true,
		ServiceName:    "elasticsearch",
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
	}
}
