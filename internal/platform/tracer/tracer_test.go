package tracer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"storegate/internal/platform/config"
	"storegate/internal/platform/tracer"
)

func TestNoopTracer(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanSearchScroll, tracer.String(tracer.AttrIndex, "meny-stores"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Int(tracer.AttrHits, 5))
	span.AddEvent(tracer.EventScrollPage, tracer.Int64("page", 1))
	span.End(errors.New("scroll failed"))
}

func TestOTelTracer(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	_, span := tr.Start(context.Background(), tracer.SpanProxyCall,
		tracer.String(tracer.AttrMethod, "GET"),
		tracer.Bool("cached", false),
		tracer.Int(tracer.AttrStatus, 200),
	)
	require.NotNil(t, span)
	span.SetAttributes(tracer.Duration("elapsed", 0), tracer.Int64(tracer.AttrBytesCopied, 512))
	span.End(nil)
}

func TestHashMemberID(t *testing.T) {
	assert.Empty(t, tracer.HashMemberID(""))
	assert.Len(t, tracer.HashMemberID("42"), 16)
	assert.Equal(t, tracer.HashMemberID("42"), tracer.HashMemberID("42"))
	assert.NotEqual(t, tracer.HashMemberID("42"), tracer.HashMemberID("43"))
}

func TestSetup(t *testing.T) {
	ctx := context.Background()

	t.Run("no endpoint registers nothing", func(t *testing.T) {
		cfg := config.TracingConfig{Enabled: true, ServiceName: "storegate"}
		assert.False(t, tracer.Enabled(cfg))

		shutdown, err := tracer.Setup(ctx, cfg)
		require.NoError(t, err)
		assert.NoError(t, shutdown(ctx))
	})

	t.Run("explicitly disabled registers nothing", func(t *testing.T) {
		cfg := config.TracingConfig{Endpoint: "http://localhost:4318", Enabled: false}
		assert.False(t, tracer.Enabled(cfg))

		shutdown, err := tracer.Setup(ctx, cfg)
		require.NoError(t, err)
		assert.NoError(t, shutdown(ctx))
	})

	t.Run("endpoint creates a provider", func(t *testing.T) {
		// non-routable, nothing is exported
		cfg := config.TracingConfig{Endpoint: "http://192.0.2.1:4318", Enabled: true, ServiceName: "storegate"}
		assert.True(t, tracer.Enabled(cfg))

		shutdown, err := tracer.Setup(ctx, cfg)
		require.NoError(t, err)

		shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_ = shutdown(shutdownCtx)
	})
}
