package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitDisabledIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), "poold", "test", Config{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, before, otel.GetTracerProvider())
}

func TestInitInstallsProvider(t *testing.T) {
	shutdown, err := Init(context.Background(), "poold", "test", Config{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		Headers:     map[string]string{"x-team": "ledger"},
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok, "expected sdk tracer provider")
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRequiresService(t *testing.T) {
	_, err := Init(context.Background(), " ", "", Config{Enabled: true})
	require.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,broken, =x,team=ledger")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "team": "ledger"}, got)
}
