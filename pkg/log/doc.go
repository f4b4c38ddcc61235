// Package log provides the structured logger used by the signer.
//
// Loggers are passed explicitly or through a context:
//
//	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelInfo})
//	ctx = log.SetContextLogger(ctx, logger.WithName("rpc"))
//	log.FromContext(ctx).Info("signed transaction", "nonce", 7)
//
// When the context carries a valid OpenTelemetry span, SetContextLogger wraps the
// logger in a SpanLogger, so each entry is also recorded as a span event.
//
// Values logged under private_key, privateKey, key_material or secret are always
// replaced with RedactedValue, by every logger in this package.
package log
