package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/ratelimit"
)

type kiwiResponse struct {
	Data     []kiwiItinerary `json:"data"`
	Currency string          `json:"currency"`
}

type kiwiItinerary struct {
	ID           string `json:"id"`
	Price        float64 `json:"price"`
	Fare         struct {
		Adults float64 `json:"adults"`
	} `json:"fare"`
	Airlines     []string  `json:"airlines"`
	Route        []kiwiLeg `json:"route"`
	Availability struct {
		Seats *int `json:"seats"`
	} `json:"availability"`
}

type kiwiLeg struct {
	FlyFrom      string `json:"flyFrom"`
	FlyTo        string `json:"flyTo"`
	LocalDep     string `json:"local_departure"`
	LocalArr     string `json:"local_arrival"`
	Airline      string `json:"airline"`
	FlightNo     int    `json:"flight_no"`
	FareCategory string `json:"fare_category"`
	Equipment    string `json:"equipment"`
}

type KiwiAdapter struct {
	*baseAdapter
}

func NewKiwiAdapter(cfg Config, limiter *ratelimit.Limiter, log *zap.Logger) *KiwiAdapter {
	k := &KiwiAdapter{baseAdapter: newBaseAdapter("kiwi", cfg, limiter, log)}
	k.baseAdapter.fetch = k.fetchItineraries
	return k
}

func (k *KiwiAdapter) fetchItineraries(ctx context.Context, criteria models.SearchCriteria) ([]models.Flight, error) {
	cfg := k.config()

	q := url.Values{}
	q.Set("fly_from", criteria.Origin)
	q.Set("fly_to", criteria.Destination)
	q.Set("date_from", criteria.DepartureDate)
	q.Set("date_to", criteria.DepartureDate)
	q.Set("adults", strconv.Itoa(criteria.Passengers.Adults))
	q.Set("children", strconv.Itoa(criteria.Passengers.Children))
	q.Set("infants", strconv.Itoa(criteria.Passengers.Infants))
	q.Set("selected_cabins", kiwiCabinCode(criteria.CabinClass))
	if criteria.ReturnDate != nil {
		q.Set("return_from", *criteria.ReturnDate)
		q.Set("return_to", *criteria.ReturnDate)
	}
	if criteria.FlexibleDates {
		q.Set("flexible", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		cfg.BaseURL+"/v2/search?"+q.Encode(), nil)
	if err != nil {
		return nil, NewProviderError(k.name, KindRejected, err)
	}
	req.Header.Set("apikey", cfg.APIKey)

	var resp kiwiResponse
	if err := k.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return k.normalize(resp, criteria)
}

func kiwiCabinCode(cabin string) string {
	switch cabin {
	case "business":
		return "C"
	case "first":
		return "F"
	case "premium_economy":
		return "W"
	default:
		return "M"
	}
}

func (k *KiwiAdapter) normalize(resp kiwiResponse, criteria models.SearchCriteria) ([]models.Flight, error) {
	flights := make([]models.Flight, 0, len(resp.Data))
	for _, itin := range resp.Data {
		if len(itin.Route) == 0 {
			continue
		}

		segments := make([]models.Segment, 0, len(itin.Route))
		for _, leg := range itin.Route {
			dep, depErr := time.Parse(time.RFC3339, leg.LocalDep)
			arr, arrErr := time.Parse(time.RFC3339, leg.LocalArr)
			if depErr != nil || arrErr != nil {
				return nil, NewProviderError(k.name, KindMalformed, fmt.Errorf("bad leg time in itinerary %s", itin.ID))
			}
			seg := models.Segment{
				Origin:          leg.FlyFrom,
				Destination:     leg.FlyTo,
				DepartureTime:   dep,
				ArrivalTime:     arr,
				DurationMinutes: int(arr.Sub(dep).Minutes()),
			}
			if leg.Equipment != "" {
				eq := leg.Equipment
				seg.Aircraft = &eq
			}
			segments = append(segments, seg)
		}

		first := itin.Route[0]
		airline := first.Airline
		if len(itin.Airlines) > 0 {
			airline = itin.Airlines[0]
		}

		seats := 0
		if itin.Availability.Seats != nil {
			seats = *itin.Availability.Seats
		}

		taxes := itin.Price - itin.Fare.Adults*float64(criteria.Passengers.Adults)
		if taxes < 0 {
			taxes = 0
		}

		f := models.Flight{
			ID:           "kiwi-" + itin.ID,
			Provider:     k.name,
			Airline:      models.Airline{Code: airline},
			FlightNumber: first.Airline + strconv.Itoa(first.FlightNo),
			Segments:     segments,
			Pricing: models.Pricing{
				Amount:       itin.Price,
				Currency:     resp.Currency,
				TaxesAndFees: taxes,
			},
			Availability: models.Availability{
				Seats:        seats,
				BookingClass: defaultBookingClass(first.FareCategory, criteria.CabinClass),
			},
		}
		computeTotals(&f)
		flights = append(flights, f)
	}
	return validateAll(k.name, flights)
}
