package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKiwiNormalize(t *testing.T) {
	seats := 3
	resp := kiwiResponse{
		Currency: "EUR",
		Data: []kiwiItinerary{{
			ID:       "it-1",
			Price:    180,
			Airlines: []string{"FR"},
			Route: []kiwiLeg{
				{
					FlyFrom:  "STN",
					FlyTo:    "BGY",
					LocalDep: "2026-09-01T06:40:00Z",
					LocalArr: "2026-09-01T09:45:00Z",
					Airline:  "FR", FlightNo: 991, FareCategory: "M", Equipment: "B738",
				},
			},
		}},
	}
	resp.Data[0].Fare.Adults = 150
	resp.Data[0].Availability.Seats = &seats

	adapter := NewKiwiAdapter(Config{BaseURL: "x", APIKey: "k"}, openLimiter(), zap.NewNop())
	flights, err := adapter.normalize(resp, testCriteria())
	require.NoError(t, err)
	require.Len(t, flights, 1)

	f := flights[0]
	assert.Equal(t, "kiwi-it-1", f.ID)
	assert.Equal(t, "FR", f.Airline.Code)
	assert.Equal(t, "FR991", f.FlightNumber)
	assert.Equal(t, 0, f.Stops)
	assert.Equal(t, 185, f.TotalDurationMinutes)
	assert.Equal(t, "EUR", f.Pricing.Currency)
	assert.InDelta(t, 30, f.Pricing.TaxesAndFees, 0.001)
	assert.Equal(t, 3, f.Availability.Seats)
	assert.Nil(t, f.LayoverMinutes)
}

func TestKiwiNormalizeRejectsBadTimes(t *testing.T) {
	resp := kiwiResponse{
		Currency: "EUR",
		Data: []kiwiItinerary{{
			ID:    "it-2",
			Route: []kiwiLeg{{FlyFrom: "STN", FlyTo: "BGY", LocalDep: "yesterday", LocalArr: "tomorrow"}},
		}},
	}

	adapter := NewKiwiAdapter(Config{BaseURL: "x", APIKey: "k"}, openLimiter(), zap.NewNop())
	_, err := adapter.normalize(resp, testCriteria())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindMalformed, pe.Kind)
}

func TestKiwiCabinCodes(t *testing.T) {
	assert.Equal(t, "M", kiwiCabinCode("economy"))
	assert.Equal(t, "C", kiwiCabinCode("business"))
	assert.Equal(t, "F", kiwiCabinCode("first"))
	assert.Equal(t, "W", kiwiCabinCode("premium_economy"))
}
