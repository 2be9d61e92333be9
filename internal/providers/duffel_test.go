package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func duffelFixture() duffelResponse {
	var resp duffelResponse
	notAllowed := struct {
		Allowed bool `json:"allowed"`
	}{Allowed: false}
	resp.Data.Offers = []duffelOffer{{
		ID:            "off_1",
		TotalAmount:   "320.40",
		TotalCurrency: "EUR",
		TaxAmount:     "45.10",
		Owner:         duffelCarrier{IataCode: "KL", Name: "KLM"},
		Slices: []duffelSlice{{
			Segments: []duffelSegment{
				{
					Origin:       duffelPlace{IataCode: "LHR"},
					Destination:  duffelPlace{IataCode: "AMS"},
					DepartingAt:  "2026-09-01T09:00:00Z",
					ArrivingAt:   "2026-09-01T11:10:00Z",
					Duration:     "PT2H10M",
					FlightNumber: "1008",
				},
				{
					Origin:       duffelPlace{IataCode: "AMS"},
					Destination:  duffelPlace{IataCode: "CDG"},
					DepartingAt:  "2026-09-01T12:00:00Z",
					ArrivingAt:   "2026-09-01T13:20:00Z",
					Duration:     "PT1H20M",
					FlightNumber: "2446",
				},
			},
		}},
		Conditions: &duffelConditions{RefundBeforeDeparture: &notAllowed},
		LoyaltyOffers: []duffelLoyalty{{
			Programme: "flying_blue",
			Points:    25000,
			TaxAmount: "60.00",
			Currency:  "EUR",
		}},
		SeatsLeft:  2,
		CabinClass: "economy",
	}}
	return resp
}

func TestDuffelNormalize(t *testing.T) {
	adapter := NewDuffelAdapter(Config{BaseURL: "x", APIKey: "k"}, openLimiter(), zap.NewNop())
	flights, err := adapter.normalize(duffelFixture(), testCriteria())
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "duffel-off_1", f.ID)
	assert.Equal(t, "duffel", f.Provider)
	assert.Equal(t, "KL", f.Airline.Code)
	assert.Equal(t, "KL1008", f.FlightNumber)
	assert.Equal(t, 1, f.Stops)
	assert.Equal(t, 260, f.TotalDurationMinutes)
	require.NotNil(t, f.LayoverMinutes)
	assert.Equal(t, 50, *f.LayoverMinutes)
	assert.InDelta(t, 320.40, f.Pricing.Amount, 0.001)
	assert.InDelta(t, 45.10, f.Pricing.TaxesAndFees, 0.001)
	require.Len(t, f.Pricing.PointsOptions, 1)
	assert.Equal(t, "flying_blue", f.Pricing.PointsOptions[0].Program)
	assert.Equal(t, 25000, f.Pricing.PointsOptions[0].Points)
	assert.Equal(t, 2, f.Availability.Seats)
	require.NotNil(t, f.Availability.FareRestrictions)
	assert.Equal(t, "non-refundable", *f.Availability.FareRestrictions)
	assert.NoError(t, f.ValidateSegments())
}

func TestDuffelNormalizeSkipsEmptyOffers(t *testing.T) {
	resp := duffelFixture()
	resp.Data.Offers = append(resp.Data.Offers, duffelOffer{ID: "off_2", TotalAmount: "1.00"})

	adapter := NewDuffelAdapter(Config{BaseURL: "x", APIKey: "k"}, openLimiter(), zap.NewNop())
	flights, err := adapter.normalize(resp, testCriteria())
	require.NoError(t, err)
	assert.Len(t, flights, 1, "offers without segments are dropped")
}

func TestDuffelNormalizeRejectsBadAmount(t *testing.T) {
	resp := duffelFixture()
	resp.Data.Offers[0].TotalAmount = "free"

	adapter := NewDuffelAdapter(Config{BaseURL: "x", APIKey: "k"}, openLimiter(), zap.NewNop())
	_, err := adapter.normalize(resp, testCriteria())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindMalformed, pe.Kind)
}
