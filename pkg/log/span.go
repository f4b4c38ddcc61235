package log

var _ Logger = &SpanLogger{}

// SpanLogger writes every entry to a wrapped Logger and records it on a span.
// Entries written to the wrapped logger carry the trace and span ids.
type SpanLogger struct {
	lg  Logger
	ser SpanEventRecorder
}

func NewSpanLogger(lg Logger, ser SpanEventRecorder) Logger {
	return &SpanLogger{
		lg:  lg.AddCallerSkip(1),
		ser: ser,
	}
}

func (sl *SpanLogger) Debug(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.spanAttributes(LevelDebug, keysAndValues)...)
	sl.lg.Debug(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) Info(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.spanAttributes(LevelInfo, keysAndValues)...)
	sl.lg.Info(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) Warn(msg string, keysAndValues ...any) {
	sl.ser.RecordEvent(msg, sl.spanAttributes(LevelWarn, keysAndValues)...)
	sl.lg.Warn(msg, sl.withTraceIDs(keysAndValues)...)
}

// Error marks the span as failed.
func (sl *SpanLogger) Error(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.spanAttributes(LevelError, keysAndValues)...)
	sl.lg.Error(msg, sl.withTraceIDs(keysAndValues)...)
}

// Fatal marks the span as failed.
func (sl *SpanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.ser.RecordError(msg, sl.spanAttributes(LevelFatal, keysAndValues)...)
	sl.lg.Fatal(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl *SpanLogger) WithKV(key string, value any) Logger {
	return &SpanLogger{lg: sl.lg.WithKV(key, value), ser: sl.ser}
}

func (sl *SpanLogger) GetAllKV() []any {
	return sl.lg.GetAllKV()
}

func (sl *SpanLogger) WithName(name string) Logger {
	return &SpanLogger{lg: sl.lg.WithName(name), ser: sl.ser}
}

func (sl *SpanLogger) Name() string {
	return sl.lg.Name()
}

func (sl *SpanLogger) AddCallerSkip(skip int) Logger {
	return &SpanLogger{lg: sl.lg.AddCallerSkip(skip), ser: sl.ser}
}

func (sl *SpanLogger) withTraceIDs(keysAndValues []any) []any {
	return append([]any{
		"traceId", sl.ser.TraceID(),
		"spanId", sl.ser.SpanID(),
	}, keysAndValues...)
}

// spanAttributes prepends the level and component to the logger's attached pairs
// and then appends keysAndValues. Sensitive values are redacted.
func (sl *SpanLogger) spanAttributes(level Level, keysAndValues []any) []any {
	attrs := append([]any{
		"level", string(level),
		"component", sl.lg.Name(),
	}, sl.lg.GetAllKV()...)
	return Redact(append(attrs, keysAndValues...))
}
