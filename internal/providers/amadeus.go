package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/ratelimit"
)

type amadeusResponse struct {
	Data []amadeusOffer `json:"data"`
}

type amadeusOffer struct {
	ID          string             `json:"id"`
	Itineraries []amadeusItinerary `json:"itineraries"`
	Price       amadeusPrice       `json:"price"`
	Seats       int                `json:"numberOfBookableSeats"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusSegment struct {
	Departure   amadeusEndpoint `json:"departure"`
	Arrival     amadeusEndpoint `json:"arrival"`
	CarrierCode string          `json:"carrierCode"`
	Number      string          `json:"number"`
	Aircraft    *amadeusCode    `json:"aircraft,omitempty"`
	Duration    string          `json:"duration"`
}

type amadeusEndpoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

type amadeusCode struct {
	Code string `json:"code"`
}

type amadeusPrice struct {
	Total      string       `json:"total"`
	Base       string       `json:"base"`
	Currency   string       `json:"currency"`
	Fees       []amadeusFee `json:"fees,omitempty"`
	BookingCls string       `json:"fareClass"`
}

type amadeusFee struct {
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

type AmadeusAdapter struct {
	*baseAdapter
}

func NewAmadeusAdapter(cfg Config, limiter *ratelimit.Limiter, log *zap.Logger) *AmadeusAdapter {
	a := &AmadeusAdapter{baseAdapter: newBaseAdapter("amadeus", cfg, limiter, log)}
	a.baseAdapter.fetch = a.fetchOffers
	return a
}

func (a *AmadeusAdapter) fetchOffers(ctx context.Context, criteria models.SearchCriteria) ([]models.Flight, error) {
	cfg := a.config()

	q := url.Values{}
	q.Set("originLocationCode", criteria.Origin)
	q.Set("destinationLocationCode", criteria.Destination)
	q.Set("departureDate", criteria.DepartureDate)
	q.Set("adults", strconv.Itoa(criteria.Passengers.Adults))
	if criteria.Passengers.Children > 0 {
		q.Set("children", strconv.Itoa(criteria.Passengers.Children))
	}
	if criteria.Passengers.Infants > 0 {
		q.Set("infants", strconv.Itoa(criteria.Passengers.Infants))
	}
	q.Set("travelClass", strings.ToUpper(criteria.CabinClass))
	if criteria.ReturnDate != nil {
		q.Set("returnDate", *criteria.ReturnDate)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		cfg.BaseURL+"/v2/shopping/flight-offers?"+q.Encode(), nil)
	if err != nil {
		return nil, NewProviderError(a.name, KindRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	var resp amadeusResponse
	if err := a.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return a.normalize(resp, criteria)
}

func (a *AmadeusAdapter) normalize(resp amadeusResponse, criteria models.SearchCriteria) ([]models.Flight, error) {
	flights := make([]models.Flight, 0, len(resp.Data))
	for _, offer := range resp.Data {
		if len(offer.Itineraries) == 0 || len(offer.Itineraries[0].Segments) == 0 {
			continue
		}
		itin := offer.Itineraries[0]

		segments := make([]models.Segment, 0, len(itin.Segments))
		for _, s := range itin.Segments {
			dep, depErr := parseAmadeusTime(s.Departure.At)
			arr, arrErr := parseAmadeusTime(s.Arrival.At)
			if depErr != nil || arrErr != nil {
				return nil, NewProviderError(a.name, KindMalformed, fmt.Errorf("bad segment time in offer %s", offer.ID))
			}
			seg := models.Segment{
				Origin:          s.Departure.IataCode,
				Destination:     s.Arrival.IataCode,
				DepartureTime:   dep,
				ArrivalTime:     arr,
				DurationMinutes: parseISODurationMinutes(s.Duration),
			}
			if s.Aircraft != nil && s.Aircraft.Code != "" {
				code := s.Aircraft.Code
				seg.Aircraft = &code
			}
			segments = append(segments, seg)
		}

		amount, err := strconv.ParseFloat(offer.Price.Total, 64)
		if err != nil {
			return nil, NewProviderError(a.name, KindMalformed, fmt.Errorf("bad price in offer %s: %w", offer.ID, err))
		}
		base, _ := strconv.ParseFloat(offer.Price.Base, 64)
		taxes := amount - base
		if taxes < 0 {
			taxes = 0
		}

		first := itin.Segments[0]
		f := models.Flight{
			ID:           "amadeus-" + offer.ID,
			Provider:     a.name,
			Airline:      models.Airline{Code: first.CarrierCode},
			FlightNumber: first.CarrierCode + first.Number,
			Segments:     segments,
			Pricing: models.Pricing{
				Amount:       amount,
				Currency:     offer.Price.Currency,
				TaxesAndFees: taxes,
			},
			Availability: models.Availability{
				Seats:        offer.Seats,
				BookingClass: defaultBookingClass(offer.Price.BookingCls, criteria.CabinClass),
			},
		}
		computeTotals(&f)
		flights = append(flights, f)
	}
	return validateAll(a.name, flights)
}

func defaultBookingClass(cls, cabin string) string {
	if cls != "" {
		return cls
	}
	return strings.ToLower(cabin)
}

var isoDurationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?$`)

// parseISODurationMinutes handles the PT#H#M durations the GDS-style
// providers emit; anything unparseable counts as zero.
func parseISODurationMinutes(s string) int {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	return hours*60 + mins
}
