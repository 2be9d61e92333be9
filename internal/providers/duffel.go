package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/ratelimit"
)

type duffelResponse struct {
	Data struct {
		Offers []duffelOffer `json:"offers"`
	} `json:"data"`
}

type duffelOffer struct {
	ID            string            `json:"id"`
	TotalAmount   string            `json:"total_amount"`
	TotalCurrency string            `json:"total_currency"`
	TaxAmount     string            `json:"tax_amount"`
	Owner         duffelCarrier     `json:"owner"`
	Slices        []duffelSlice     `json:"slices"`
	Conditions    *duffelConditions `json:"conditions,omitempty"`
	LoyaltyOffers []duffelLoyalty   `json:"loyalty_programme_offers,omitempty"`
	SeatsLeft     int               `json:"available_seats"`
	CabinClass    string            `json:"cabin_class"`
}

type duffelCarrier struct {
	IataCode string `json:"iata_code"`
	Name     string `json:"name"`
}

type duffelSlice struct {
	Segments []duffelSegment `json:"segments"`
}

type duffelSegment struct {
	Origin       duffelPlace `json:"origin"`
	Destination  duffelPlace `json:"destination"`
	DepartingAt  string      `json:"departing_at"`
	ArrivingAt   string      `json:"arriving_at"`
	Duration     string      `json:"duration"`
	Aircraft     *duffelName `json:"aircraft,omitempty"`
	FlightNumber string      `json:"marketing_carrier_flight_number"`
}

type duffelPlace struct {
	IataCode string `json:"iata_code"`
}

type duffelName struct {
	Name string `json:"name"`
}

type duffelConditions struct {
	RefundBeforeDeparture *struct {
		Allowed bool `json:"allowed"`
	} `json:"refund_before_departure,omitempty"`
}

type duffelLoyalty struct {
	Programme string `json:"loyalty_programme"`
	Points    int    `json:"points_required"`
	TaxAmount string `json:"tax_amount"`
	Currency  string `json:"tax_currency"`
}

type DuffelAdapter struct {
	*baseAdapter
}

func NewDuffelAdapter(cfg Config, limiter *ratelimit.Limiter, log *zap.Logger) *DuffelAdapter {
	d := &DuffelAdapter{baseAdapter: newBaseAdapter("duffel", cfg, limiter, log)}
	d.baseAdapter.fetch = d.fetchOffers
	return d
}

func (d *DuffelAdapter) fetchOffers(ctx context.Context, criteria models.SearchCriteria) ([]models.Flight, error) {
	cfg := d.config()

	passengers := make([]map[string]string, 0, criteria.Passengers.Total())
	for i := 0; i < criteria.Passengers.Adults; i++ {
		passengers = append(passengers, map[string]string{"type": "adult"})
	}
	for i := 0; i < criteria.Passengers.Children; i++ {
		passengers = append(passengers, map[string]string{"type": "child"})
	}
	for i := 0; i < criteria.Passengers.Infants; i++ {
		passengers = append(passengers, map[string]string{"type": "infant_without_seat"})
	}

	slices := []map[string]string{{
		"origin":         criteria.Origin,
		"destination":    criteria.Destination,
		"departure_date": criteria.DepartureDate,
	}}
	if criteria.ReturnDate != nil {
		slices = append(slices, map[string]string{
			"origin":         criteria.Destination,
			"destination":    criteria.Origin,
			"departure_date": *criteria.ReturnDate,
		})
	}

	body, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"slices":      slices,
			"passengers":  passengers,
			"cabin_class": criteria.CabinClass,
		},
	})
	if err != nil {
		return nil, NewProviderError(d.name, KindRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.BaseURL+"/air/offer_requests", bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(d.name, KindRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Duffel-Version", "v1")
	req.Header.Set("Content-Type", "application/json")

	var resp duffelResponse
	if err := d.doJSON(ctx, req, &resp); err != nil {
		return nil, err
	}
	return d.normalize(resp, criteria)
}

func (d *DuffelAdapter) normalize(resp duffelResponse, criteria models.SearchCriteria) ([]models.Flight, error) {
	flights := make([]models.Flight, 0, len(resp.Data.Offers))
	for _, offer := range resp.Data.Offers {
		if len(offer.Slices) == 0 || len(offer.Slices[0].Segments) == 0 {
			continue
		}
		segs := offer.Slices[0].Segments

		segments := make([]models.Segment, 0, len(segs))
		for _, s := range segs {
			dep, depErr := time.Parse(time.RFC3339, s.DepartingAt)
			arr, arrErr := time.Parse(time.RFC3339, s.ArrivingAt)
			if depErr != nil || arrErr != nil {
				return nil, NewProviderError(d.name, KindMalformed, fmt.Errorf("bad segment time in offer %s", offer.ID))
			}
			seg := models.Segment{
				Origin:          s.Origin.IataCode,
				Destination:     s.Destination.IataCode,
				DepartureTime:   dep,
				ArrivalTime:     arr,
				DurationMinutes: parseISODurationMinutes(s.Duration),
			}
			if s.Aircraft != nil && s.Aircraft.Name != "" {
				name := s.Aircraft.Name
				seg.Aircraft = &name
			}
			segments = append(segments, seg)
		}

		amount, err := strconv.ParseFloat(offer.TotalAmount, 64)
		if err != nil {
			return nil, NewProviderError(d.name, KindMalformed, fmt.Errorf("bad amount in offer %s: %w", offer.ID, err))
		}
		taxes, _ := strconv.ParseFloat(offer.TaxAmount, 64)

		points := make([]models.PointsOption, 0, len(offer.LoyaltyOffers))
		for _, lo := range offer.LoyaltyOffers {
			fees, _ := strconv.ParseFloat(lo.TaxAmount, 64)
			points = append(points, models.PointsOption{
				Program:      lo.Programme,
				Points:       lo.Points,
				TaxesAndFees: fees,
				Currency:     lo.Currency,
			})
		}

		var restrictions *string
		if offer.Conditions != nil && offer.Conditions.RefundBeforeDeparture != nil &&
			!offer.Conditions.RefundBeforeDeparture.Allowed {
			r := "non-refundable"
			restrictions = &r
		}

		f := models.Flight{
			ID:           "duffel-" + offer.ID,
			Provider:     d.name,
			Airline:      models.Airline{Code: offer.Owner.IataCode, Name: offer.Owner.Name},
			FlightNumber: offer.Owner.IataCode + segs[0].FlightNumber,
			Segments:     segments,
			Pricing: models.Pricing{
				Amount:        amount,
				Currency:      offer.TotalCurrency,
				TaxesAndFees:  taxes,
				PointsOptions: points,
			},
			Availability: models.Availability{
				Seats:            offer.SeatsLeft,
				BookingClass:     defaultBookingClass(offer.CabinClass, criteria.CabinClass),
				FareRestrictions: restrictions,
			},
		}
		computeTotals(&f)
		flights = append(flights, f)
	}
	return validateAll(d.name, flights)
}
