package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/ratelimit"
)

const amadeusOffersJSON = `{
  "data": [{
    "id": "1",
    "itineraries": [{
      "duration": "PT9H20M",
      "segments": [
        {"departure": {"iataCode": "JFK", "at": "2026-09-01T08:00:00"},
         "arrival": {"iataCode": "KEF", "at": "2026-09-01T13:20:00"},
         "carrierCode": "FI", "number": "614", "aircraft": {"code": "B757"}, "duration": "PT5H20M"},
        {"departure": {"iataCode": "KEF", "at": "2026-09-01T14:30:00"},
         "arrival": {"iataCode": "LHR", "at": "2026-09-01T17:20:00"},
         "carrierCode": "FI", "number": "450", "duration": "PT2H50M"}
      ]
    }],
    "price": {"total": "540.50", "base": "480.00", "currency": "USD"},
    "numberOfBookableSeats": 4
  }]
}`

func testCriteria() models.SearchCriteria {
	return models.SearchCriteria{
		Origin:        "JFK",
		Destination:   "LHR",
		DepartureDate: "2026-09-01",
		Passengers:    models.PassengerCounts{Adults: 1},
		CabinClass:    "economy",
	}
}

func openLimiter() *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		PerMinute:         1000,
		PerHour:           10000,
		RequestsPerSecond: 10000,
		BurstSize:         10000,
	})
}

func newAmadeus(baseURL string, maxRetries int, limiter *ratelimit.Limiter) *AmadeusAdapter {
	return NewAmadeusAdapter(Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	}, limiter, zap.NewNop())
}

func TestAmadeusSearchNormalizesOffers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/shopping/flight-offers", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "JFK", r.URL.Query().Get("originLocationCode"))
		_, _ = w.Write([]byte(amadeusOffersJSON))
	}))
	defer server.Close()

	adapter := newAmadeus(server.URL, 0, openLimiter())
	flights, err := adapter.Search(context.Background(), testCriteria())
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "amadeus-1", f.ID)
	assert.Equal(t, "amadeus", f.Provider)
	assert.Equal(t, "FI", f.Airline.Code)
	assert.Equal(t, "FI614", f.FlightNumber)
	require.Len(t, f.Segments, 2)
	assert.Equal(t, "JFK", f.Origin())
	assert.Equal(t, "LHR", f.Destination())
	assert.Equal(t, 1, f.Stops)
	assert.Equal(t, 560, f.TotalDurationMinutes)
	require.NotNil(t, f.LayoverMinutes)
	assert.Equal(t, 70, *f.LayoverMinutes)
	assert.InDelta(t, 540.50, f.Pricing.Amount, 0.001)
	assert.InDelta(t, 60.50, f.Pricing.TaxesAndFees, 0.001)
	assert.Equal(t, 4, f.Availability.Seats)
	require.NotNil(t, f.Segments[0].Aircraft)
	assert.Equal(t, "B757", *f.Segments[0].Aircraft)
	assert.NoError(t, f.ValidateSegments())
}

func TestAmadeusRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(amadeusOffersJSON))
	}))
	defer server.Close()

	adapter := newAmadeus(server.URL, 2, openLimiter())
	flights, err := adapter.Search(context.Background(), testCriteria())
	require.NoError(t, err)
	assert.Len(t, flights, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAmadeusDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := newAmadeus(server.URL, 3, openLimiter())
	_, err := adapter.Search(context.Background(), testCriteria())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindRejected, pe.Kind)
	assert.False(t, pe.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestAmadeusExhaustsRetriesOnPersistentOutage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := newAmadeus(server.URL, 2, openLimiter())
	_, err := adapter.Search(context.Background(), testCriteria())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnavailable, pe.Kind)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAmadeusMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"id": "1", "itineraries": [{"segments": [`))
	}))
	defer server.Close()

	adapter := newAmadeus(server.URL, 0, openLimiter())
	_, err := adapter.Search(context.Background(), testCriteria())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindMalformed, pe.Kind)
}

func TestSearchFailsFastWhenRateLimited(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	closed := ratelimit.New(ratelimit.Config{PerMinute: 0, PerHour: 0, RequestsPerSecond: 1, BurstSize: 1})
	adapter := newAmadeus(server.URL, 3, closed)

	_, err := adapter.Search(context.Background(), testCriteria())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindRateLimited, pe.Kind)
	assert.True(t, pe.Retryable())
	assert.Equal(t, int32(0), calls.Load(), "upstream must not be contacted when admission is denied")
}

func TestHealthCountersTrackAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(amadeusOffersJSON))
	}))
	defer server.Close()

	adapter := newAmadeus(server.URL, 1, openLimiter())
	_, err := adapter.Search(context.Background(), testCriteria())
	require.NoError(t, err)

	status := adapter.Status()
	assert.Equal(t, "amadeus", status.Provider)
	assert.True(t, status.IsHealthy)
	assert.InDelta(t, 0.5, status.ErrorRate, 0.001)
	assert.False(t, status.LastSuccessfulRequest.IsZero())
	assert.NotEmpty(t, status.LastError)
}

func TestValidateAndUpdateConfig(t *testing.T) {
	adapter := newAmadeus("", 0, openLimiter())
	assert.False(t, adapter.ValidateConfig(), "empty base url is invalid")

	base := "https://api.example.com"
	adapter.UpdateConfig(ConfigPatch{BaseURL: &base})
	assert.True(t, adapter.ValidateConfig())
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, classifyStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindUnavailable, classifyStatus(http.StatusInternalServerError))
	assert.Equal(t, KindUnavailable, classifyStatus(http.StatusServiceUnavailable))
	assert.Equal(t, KindRejected, classifyStatus(http.StatusBadRequest))
	assert.Equal(t, KindRejected, classifyStatus(http.StatusUnauthorized))
}

func TestRetryablePredicate(t *testing.T) {
	assert.True(t, Retryable(NewProviderError("x", KindUnavailable, errors.New("boom"))))
	assert.True(t, Retryable(NewProviderError("x", KindTimeout, errors.New("slow"))))
	assert.False(t, Retryable(NewProviderError("x", KindRejected, errors.New("401"))))
	assert.False(t, Retryable(NewProviderError("x", KindMalformed, errors.New("bad json"))))
}

func TestParseISODurationMinutes(t *testing.T) {
	assert.Equal(t, 560, parseISODurationMinutes("PT9H20M"))
	assert.Equal(t, 45, parseISODurationMinutes("PT45M"))
	assert.Equal(t, 120, parseISODurationMinutes("PT2H"))
	assert.Equal(t, 0, parseISODurationMinutes("garbage"))
}
