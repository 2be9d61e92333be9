package models

import (
	"errors"
	"time"
)

type Airline struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Segment is one leg of an itinerary. Segments in a Flight are ordered:
// segment i arrives where segment i+1 departs, and times never go backwards.
type Segment struct {
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	DepartureTime   time.Time `json:"departure_time"`
	ArrivalTime     time.Time `json:"arrival_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Aircraft        *string   `json:"aircraft,omitempty"`
}

type PointsOption struct {
	Program      string  `json:"program"`
	Points       int     `json:"points"`
	TaxesAndFees float64 `json:"taxes_and_fees"`
	Currency     string  `json:"currency"`
}

type Pricing struct {
	Amount        float64        `json:"amount"`
	Currency      string         `json:"currency"`
	TaxesAndFees  float64        `json:"taxes_and_fees"`
	PointsOptions []PointsOption `json:"points_options,omitempty"`
}

type Availability struct {
	Seats            int     `json:"seats"`
	BookingClass     string  `json:"booking_class"`
	FareRestrictions *string `json:"fare_restrictions,omitempty"`
}

type Flight struct {
	ID                   string       `json:"id"`
	Provider             string       `json:"provider"`
	Airline              Airline      `json:"airline"`
	FlightNumber         string       `json:"flight_number"`
	Segments             []Segment    `json:"segments"`
	Pricing              Pricing      `json:"pricing"`
	Availability         Availability `json:"availability"`
	TotalDurationMinutes int          `json:"total_duration_minutes"`
	Stops                int          `json:"stops"`
	LayoverMinutes       *int         `json:"layover_minutes,omitempty"`
	Score                *float64     `json:"score,omitempty"`
}

var (
	ErrNoSegments            = errors.New("flight has no segments")
	ErrSegmentsNotContiguous = errors.New("segment destination does not match next segment origin")
	ErrSegmentsOutOfOrder    = errors.New("segment times are not chronological")
)

// ValidateSegments enforces the route invariant: contiguous airports and
// non-decreasing timestamps across the whole itinerary.
func (f *Flight) ValidateSegments() error {
	if len(f.Segments) == 0 {
		return ErrNoSegments
	}
	for i, s := range f.Segments {
		if s.ArrivalTime.Before(s.DepartureTime) {
			return ErrSegmentsOutOfOrder
		}
		if i == 0 {
			continue
		}
		prev := f.Segments[i-1]
		if prev.Destination != s.Origin {
			return ErrSegmentsNotContiguous
		}
		if s.DepartureTime.Before(prev.ArrivalTime) {
			return ErrSegmentsOutOfOrder
		}
	}
	return nil
}

func (f *Flight) Origin() string {
	if len(f.Segments) == 0 {
		return ""
	}
	return f.Segments[0].Origin
}

func (f *Flight) Destination() string {
	if len(f.Segments) == 0 {
		return ""
	}
	return f.Segments[len(f.Segments)-1].Destination
}

func (f *Flight) DepartureTime() time.Time {
	if len(f.Segments) == 0 {
		return time.Time{}
	}
	return f.Segments[0].DepartureTime
}

func (f *Flight) ArrivalTime() time.Time {
	if len(f.Segments) == 0 {
		return time.Time{}
	}
	return f.Segments[len(f.Segments)-1].ArrivalTime
}
