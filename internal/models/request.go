package models

import "strings"

type PassengerCounts struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

func (p PassengerCounts) Total() int {
	return p.Adults + p.Children + p.Infants
}

// SearchCriteria is immutable once a search begins. Validate normalizes it
// in place before the orchestrator takes ownership.
type SearchCriteria struct {
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate string          `json:"departure_date"`
	ReturnDate    *string         `json:"return_date,omitempty"`
	Passengers    PassengerCounts `json:"passengers"`
	CabinClass    string          `json:"cabin_class"`
	FlexibleDates bool            `json:"flexible_dates"`
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin        ValidationError = "origin is required"
	ErrMissingDestination   ValidationError = "destination is required"
	ErrMissingDepartureDate ValidationError = "departure_date is required"
	ErrInvalidAirportCode   ValidationError = "airport codes must be 3 letters"
)

func (c *SearchCriteria) Validate() error {
	c.Origin = strings.ToUpper(strings.TrimSpace(c.Origin))
	c.Destination = strings.ToUpper(strings.TrimSpace(c.Destination))

	if c.Origin == "" {
		return ErrMissingOrigin
	}
	if c.Destination == "" {
		return ErrMissingDestination
	}
	if len(c.Origin) != 3 || len(c.Destination) != 3 {
		return ErrInvalidAirportCode
	}
	if c.DepartureDate == "" {
		return ErrMissingDepartureDate
	}
	if c.Passengers.Adults <= 0 {
		c.Passengers.Adults = 1
	}
	if c.CabinClass == "" {
		c.CabinClass = "economy"
	}
	return nil
}

type SortKey string

const (
	SortByPrice    SortKey = "price"
	SortByDuration SortKey = "duration"
	SortByScore    SortKey = "score"
)

// SearchOptions tune one submission; zero values fall back to the
// orchestrator's configured defaults.
type SearchOptions struct {
	Providers     []string `json:"providers,omitempty"`
	TimeoutMs     int      `json:"timeout_ms,omitempty"`
	SortBy        SortKey  `json:"sort_by,omitempty"`
	UseCache      bool     `json:"use_cache"`
	MaxConcurrent int      `json:"max_concurrent,omitempty"`
}
