package log

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ SpanEventRecorder = (*OtelSpanEventRecorder)(nil)

const (
	missingAttributeValue = "MISSING"
	invalidAttributeKey   = "invalidKeysAndValues"
)

// OtelSpanEventRecorder turns log entries into events of an OpenTelemetry span.
type OtelSpanEventRecorder struct {
	span trace.Span
}

func NewOtelSpanEventRecorder(span trace.Span) *OtelSpanEventRecorder {
	return &OtelSpanEventRecorder{span: span}
}

func (r *OtelSpanEventRecorder) TraceID() string { return r.span.SpanContext().TraceID().String() }
func (r *OtelSpanEventRecorder) SpanID() string  { return r.span.SpanContext().SpanID().String() }

func (r *OtelSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(kvToOtelAttributes(keysAndValues...)...))
}

// RecordError also sets the span status to Error.
func (r *OtelSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	r.RecordEvent(name, keysAndValues...)
	r.span.SetStatus(codes.Error, name)
}

// kvToOtelAttributes converts alternating keys and values. A dangling key
// gets missingAttributeValue; the first non-string key ends the conversion
// and the unconverted rest is kept under invalidAttributeKey.
func kvToOtelAttributes(keysAndValues ...any) []attribute.KeyValue {
	kv := Redact(keysAndValues)
	if len(kv)%2 == 1 {
		kv = append(kv[:len(kv):len(kv)], missingAttributeValue)
	}

	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			return append(attrs, attribute.String(invalidAttributeKey, fmt.Sprint(kv[i:])))
		}
		attrs = append(attrs, toOtelAttribute(key, kv[i+1]))
	}
	return attrs
}

// toOtelAttribute keeps numbers numeric while they fit in an int64. Larger
// unsigned values, such as nonces, become decimal strings.
func toOtelAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case bool:
		return attribute.Bool(key, v)
	case string:
		return attribute.String(key, v)
	case error:
		return attribute.String(key, v.Error())
	case fmt.Stringer:
		return attribute.String(key, v.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return attribute.Int64(key, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return attribute.Int64(key, int64(u))
		}
		return attribute.String(key, strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		return attribute.Float64(key, rv.Float())
	default:
		return attribute.String(key, fmt.Sprint(value))
	}
}
