package log

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = (*ZapLogger)(nil)

// Config selects the encoder, minimum level and destination of a ZapLogger.
type Config struct {
	Format string `env:"LOG_FORMAT" env-default:"console"` // console, logfmt or json
	Level  Level  `env:"LOG_LEVEL" env-default:"info"`     // debug, info, warn, error or fatal
	Output string `env:"LOG_OUTPUT" env-default:"stderr"`  // stderr, stdout or a file path
}

// ZapLogger is a Logger backed by a zap SugaredLogger.
type ZapLogger struct {
	sugar    *zap.SugaredLogger
	attached []any
}

// NewZapLogger builds a ZapLogger from conf. Every entry is also written to
// each of extraWriters, which tests use to capture output.
func NewZapLogger(conf Config, extraWriters ...zapcore.WriteSyncer) Logger {
	sinks := append(slices.Clone(extraWriters), openOutput(conf.Output))
	core := zapcore.NewCore(newEncoder(conf.Format), zapcore.NewMultiWriteSyncer(sinks...), toZapLevel(conf.Level))

	// Callers are reported past the level method and write.
	sugar := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
	return &ZapLogger{sugar: sugar}
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	switch format {
	case "json":
		return zapcore.NewJSONEncoder(cfg)
	case "logfmt":
		return zaplogfmt.NewEncoder(cfg)
	default:
		return zapcore.NewConsoleEncoder(cfg)
	}
}

// openOutput falls back to stderr when a log file cannot be opened.
func openOutput(output string) zapcore.WriteSyncer {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr)
	case "stdout":
		return zapcore.Lock(os.Stdout)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return zapcore.Lock(os.Stderr)
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(f)
}

func toZapLevel(level Level) zapcore.Level {
	lvl, err := zapcore.ParseLevel(string(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.write(LevelDebug, msg, keysAndValues) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.write(LevelInfo, msg, keysAndValues) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.write(LevelWarn, msg, keysAndValues) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.write(LevelError, msg, keysAndValues) }
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) { l.write(LevelFatal, msg, keysAndValues) }

func (l *ZapLogger) write(level Level, msg string, keysAndValues []any) {
	l.sugar.Logw(toZapLevel(level), msg, Redact(keysAndValues)...)
}

// WithKV attaches key and value to every later entry. A sensitive key gets
// RedactedValue instead of value.
func (l *ZapLogger) WithKV(key string, value any) Logger {
	if IsSensitiveKey(key) {
		value = RedactedValue
	}
	attached := append(slices.Clip(l.attached), key, value)
	return &ZapLogger{sugar: l.sugar.With(key, value), attached: attached}
}

func (l *ZapLogger) GetAllKV() []any { return l.attached }

// WithName extends the logger name with a dot-separated component.
func (l *ZapLogger) WithName(name string) Logger {
	return &ZapLogger{sugar: l.sugar.Named(name), attached: l.attached}
}

func (l *ZapLogger) Name() string { return l.sugar.Desugar().Name() }

func (l *ZapLogger) AddCallerSkip(skip int) Logger {
	return &ZapLogger{sugar: l.sugar.WithOptions(zap.AddCallerSkip(skip)), attached: l.attached}
}
