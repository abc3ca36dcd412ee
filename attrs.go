package tracing

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// spanAttribute converts a caller-supplied attribute value into a
// typed otel attribute. Values are restricted to strings, booleans,
// 64-bit integers, and double-precision floats; anything else is a
// programming error in the caller and is reported rather than coerced,
// because downstream exporters are strict about attribute typing.
func spanAttribute(key string, value any) (attribute.KeyValue, error) {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v), nil
	case bool:
		return attribute.Bool(key, v), nil
	case int:
		return attribute.Int(key, v), nil
	case int64:
		return attribute.Int64(key, v), nil
	case float64:
		return attribute.Float64(key, v), nil
	}
	return attribute.KeyValue{}, fmt.Errorf("span attribute %q: unsupported value type %T", key, value)
}

// spanAttributes converts a caller-supplied attribute map, failing on
// the first unsupported value.
func spanAttributes(attrs map[string]any) ([]attribute.KeyValue, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		kv, err := spanAttribute(key, value)
		if err != nil {
			return nil, err
		}
		kvs = append(kvs, kv)
	}
	return kvs, nil
}

// spanKindFor classifies a new span from its initial attributes: an
// http.* key marks an inbound network call, everything else is
// internal work.
func spanKindFor(attrs map[string]any) trace.SpanKind {
	for key := range attrs {
		if strings.HasPrefix(key, "http.") {
			return trace.SpanKindServer
		}
	}
	return trace.SpanKindInternal
}
