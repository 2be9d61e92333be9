package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRegistry() *Registry {
	limiter := openLimiter()
	cfg := Config{BaseURL: "https://example.com", APIKey: "k", Timeout: time.Second}
	return NewRegistry(
		NewAmadeusAdapter(cfg, limiter, zap.NewNop()),
		NewDuffelAdapter(cfg, limiter, zap.NewNop()),
		NewKiwiAdapter(cfg, limiter, zap.NewNop()),
	)
}

func TestRegistryResolvesByName(t *testing.T) {
	r := testRegistry()

	a, err := r.Get("amadeus")
	require.NoError(t, err)
	assert.Equal(t, "amadeus", a.Name())

	_, err = r.Get("sabre")
	assert.Error(t, err)
}

func TestRegistryNamesAreSorted(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, []string{"amadeus", "duffel", "kiwi"}, r.Names())
}

func TestRegistryHealthCoversAllAdapters(t *testing.T) {
	r := testRegistry()
	health := r.Health(context.Background())

	require.Len(t, health, 3)
	for name, status := range health {
		assert.Equal(t, name, status.Provider)
		assert.True(t, status.IsHealthy, "fresh adapter %s should be healthy", name)
	}
}
