package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	"github.com/erc7824/nitrolite/ethsigner/pkg/log"
)

func TestContextLogger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, isNoop := log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)

	logger := log.NewZapLogger(log.Config{})
	ctx = log.SetContextLogger(ctx, logger)
	_, isZap := log.FromContext(ctx).(*log.ZapLogger)
	assert.True(t, isZap)

	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: [16]byte{1},
		SpanID:  [8]byte{1},
	}))
	ctx = log.SetContextLogger(ctx, logger)
	_, isSpan := log.FromContext(ctx).(*log.SpanLogger)
	assert.True(t, isSpan)

	ctx = log.SetContextLogger(context.Background(), nil)
	_, isNoop = log.FromContext(ctx).(log.NoopLogger)
	assert.True(t, isNoop)
}
