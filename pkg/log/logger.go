package log

import "strings"

// Logger is the structured logger used across the signer.
// keysAndValues are alternating keys and values, e.g. ("chain_id", 3, "nonce", 7).
type Logger interface {
	// Debug logs low-level details useful while developing or diagnosing a request.
	Debug(msg string, keysAndValues ...any)
	// Info logs routine events such as startup and shutdown.
	Info(msg string, keysAndValues ...any)
	// Warn logs unexpected situations the process can continue from.
	Warn(msg string, keysAndValues ...any)
	// Error logs failures that need attention.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure. Implementations may terminate the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that attaches key and value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the key-value pairs attached with WithKV.
	GetAllKV() []any
	// WithName returns a logger for a named component.
	WithName(name string) Logger
	// Name returns the component name.
	Name() string
	// AddCallerSkip returns a logger that skips skip extra frames when reporting the caller.
	AddCallerSkip(skip int) Logger
}

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// SpanEventRecorder records log entries on a trace span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string

	// RecordEvent adds an event named name with keysAndValues as attributes.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError adds an event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}

// RedactedValue replaces the value of every sensitive key.
const RedactedValue = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"private_key":  {},
	"privatekey":   {},
	"key_material": {},
	"secret":       {},
}

// IsSensitiveKey reports whether values logged under key are replaced with RedactedValue.
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Redact returns keysAndValues with the value of every sensitive key replaced.
// The input slice is never modified.
func Redact(keysAndValues []any) []any {
	var out []any
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || !IsSensitiveKey(key) {
			continue
		}
		if out == nil {
			out = make([]any, len(keysAndValues))
			copy(out, keysAndValues)
		}
		out[i+1] = RedactedValue
	}
	if out == nil {
		return keysAndValues
	}
	return out
}
