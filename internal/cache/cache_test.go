package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andriputra/skysearch/internal/models"
)

func baseCriteria() models.SearchCriteria {
	return models.SearchCriteria{
		Origin:        "JFK",
		Destination:   "LHR",
		DepartureDate: "2026-09-01",
		Passengers:    models.PassengerCounts{Adults: 1},
		CabinClass:    "economy",
	}
}

func TestGenerateKeyIsDeterministic(t *testing.T) {
	a := GenerateKey(baseCriteria(), "amadeus")
	b := GenerateKey(baseCriteria(), "amadeus")
	assert.Equal(t, a, b)
}

func TestGenerateKeyNormalizesAirportCodes(t *testing.T) {
	messy := baseCriteria()
	messy.Origin = "  jfk "
	messy.Destination = "lhr"

	assert.Equal(t, GenerateKey(baseCriteria(), "amadeus"), GenerateKey(messy, "amadeus"))
}

func TestGenerateKeyTruncatesDepartureDate(t *testing.T) {
	withTime := baseCriteria()
	withTime.DepartureDate = "2026-09-01T14:30:00Z"

	assert.Equal(t, GenerateKey(baseCriteria(), "amadeus"), GenerateKey(withTime, "amadeus"))
}

func TestGenerateKeyDistinguishesPassengerCounts(t *testing.T) {
	two := baseCriteria()
	two.Passengers.Adults = 2

	assert.NotEqual(t, GenerateKey(baseCriteria(), "amadeus"), GenerateKey(two, "amadeus"))
}

func TestGenerateKeyDistinguishesProviders(t *testing.T) {
	assert.NotEqual(t, GenerateKey(baseCriteria(), "amadeus"), GenerateKey(baseCriteria(), "duffel"))
}

func TestGenerateKeyEmbedsRoute(t *testing.T) {
	key := GenerateKey(baseCriteria(), "amadeus")
	assert.Contains(t, key, "search:JFK:LHR:")
}

func sampleFlights() []models.Flight {
	return []models.Flight{{ID: "f1", Provider: "amadeus", Pricing: models.Pricing{Amount: 420, Currency: "USD"}}}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	key := GenerateKey(baseCriteria(), "amadeus")

	_, ok := c.Get(ctx, key)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, key, sampleFlights(), time.Minute))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "f1", got[0].ID)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", sampleFlights(), time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "expired entries are not served")
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sampleFlights(), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheInvalidateRoute(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	jfkLhr := GenerateKey(baseCriteria(), "amadeus")
	other := baseCriteria()
	other.Destination = "CDG"
	jfkCdg := GenerateKey(other, "amadeus")

	require.NoError(t, c.Set(ctx, jfkLhr, sampleFlights(), time.Minute))
	require.NoError(t, c.Set(ctx, jfkCdg, sampleFlights(), time.Minute))

	require.NoError(t, c.InvalidateRoute(ctx, "jfk", "lhr"))

	_, ok := c.Get(ctx, jfkLhr)
	assert.False(t, ok)
	_, ok = c.Get(ctx, jfkCdg)
	assert.True(t, ok, "other routes survive invalidation")
}
