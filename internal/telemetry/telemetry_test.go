package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_NoopWhenDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Endpoint: "http://localhost:4318", ServiceName: "gigboard"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Enabled: true, ServiceName: "gigboard"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_CreatesProvider(t *testing.T) {
	// Non-routable address; nothing is exported before shutdown.
	shutdown, err := Setup(context.Background(), Options{
		Enabled:        true,
		Endpoint:       "http://192.0.2.1:4318",
		ServiceName:    "gigboard",
		ServiceVersion: "test",
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
