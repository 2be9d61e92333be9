// Package filter is the post-aggregation pipeline: pure, order-independent
// predicates over a materialized result set plus stable sorting. Nothing
// here touches shared state, so callers may run it outside the
// orchestrator's concurrency domain.
package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/andriputra/skysearch/internal/models"
)

// Spec toggles each predicate independently; enabled predicates compose as
// a conjunction, so application order never changes the result set.
type Spec struct {
	PriceMin           *float64 `json:"price_min,omitempty"`
	PriceMax           *float64 `json:"price_max,omitempty"`
	DirectOnly         bool     `json:"direct_only,omitempty"`
	MaxStops           *int     `json:"max_stops,omitempty"`
	DepartureAfter     *string  `json:"departure_after,omitempty"`
	DepartureBefore    *string  `json:"departure_before,omitempty"`
	ArrivalAfter       *string  `json:"arrival_after,omitempty"`
	ArrivalBefore      *string  `json:"arrival_before,omitempty"`
	MaxDurationMinutes *int     `json:"max_duration_minutes,omitempty"`
	Aircraft           []string `json:"aircraft,omitempty"`
	Airlines           []string `json:"airlines,omitempty"`
	Alliances          []string `json:"alliances,omitempty"`
}

func Apply(flights []models.Flight, spec *Spec) []models.Flight {
	if spec == nil {
		return flights
	}
	result := make([]models.Flight, 0, len(flights))
	for _, f := range flights {
		if matches(&f, spec) {
			result = append(result, f)
		}
	}
	return result
}

func matches(f *models.Flight, spec *Spec) bool {
	if spec.PriceMin != nil && f.Pricing.Amount < *spec.PriceMin {
		return false
	}
	if spec.PriceMax != nil && f.Pricing.Amount > *spec.PriceMax {
		return false
	}
	if spec.DirectOnly && f.Stops > 0 {
		return false
	}
	if spec.MaxStops != nil && f.Stops > *spec.MaxStops {
		return false
	}
	if !withinWindow(f.DepartureTime(), spec.DepartureAfter, spec.DepartureBefore) {
		return false
	}
	if !withinWindow(f.ArrivalTime(), spec.ArrivalAfter, spec.ArrivalBefore) {
		return false
	}
	if spec.MaxDurationMinutes != nil && f.TotalDurationMinutes > *spec.MaxDurationMinutes {
		return false
	}
	if len(spec.Aircraft) > 0 && !matchesAircraft(f, spec.Aircraft) {
		return false
	}
	if len(spec.Airlines) > 0 && !containsFold(spec.Airlines, f.Airline.Code) {
		return false
	}
	if len(spec.Alliances) > 0 && !matchesAlliance(f.Airline.Code, spec.Alliances) {
		return false
	}
	return true
}

func withinWindow(t time.Time, after, before *string) bool {
	minutes := t.Hour()*60 + t.Minute()
	if after != nil {
		if min, err := parseTimeOfDay(*after); err == nil && minutes < min {
			return false
		}
	}
	if before != nil {
		if max, err := parseTimeOfDay(*before); err == nil && minutes > max {
			return false
		}
	}
	return true
}

func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func matchesAircraft(f *models.Flight, wanted []string) bool {
	for _, seg := range f.Segments {
		if seg.Aircraft != nil && containsFold(wanted, *seg.Aircraft) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

var allianceMembers = map[string]string{
	// Star Alliance
	"LH": "star", "UA": "star", "SQ": "star", "NH": "star", "TG": "star", "AC": "star", "TK": "star",
	// oneworld
	"AA": "oneworld", "BA": "oneworld", "QF": "oneworld", "CX": "oneworld", "JL": "oneworld", "QR": "oneworld",
	// SkyTeam
	"DL": "skyteam", "AF": "skyteam", "KL": "skyteam", "KE": "skyteam", "GA": "skyteam", "VN": "skyteam",
}

func matchesAlliance(airlineCode string, alliances []string) bool {
	alliance, ok := allianceMembers[strings.ToUpper(airlineCode)]
	if !ok {
		return false
	}
	return containsFold(alliances, alliance)
}

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Sort orders flights by key with stable tie-breaking (original order is
// kept for equal elements). Score defaults to descending, price and
// duration to ascending, unless order says otherwise.
func Sort(flights []models.Flight, key models.SortKey, order SortOrder) []models.Flight {
	out := append([]models.Flight(nil), flights...)

	var less func(i, j int) bool
	switch key {
	case models.SortByDuration:
		less = func(i, j int) bool { return out[i].TotalDurationMinutes < out[j].TotalDurationMinutes }
	case models.SortByScore:
		less = func(i, j int) bool { return scoreOf(&out[i]) > scoreOf(&out[j]) }
		if order == OrderAsc {
			less = func(i, j int) bool { return scoreOf(&out[i]) < scoreOf(&out[j]) }
		}
		sort.SliceStable(out, less)
		return out
	default:
		less = func(i, j int) bool { return out[i].Pricing.Amount < out[j].Pricing.Amount }
	}
	if order == OrderDesc {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.SliceStable(out, less)
	return out
}

func scoreOf(f *models.Flight) float64 {
	if f.Score == nil {
		return 0
	}
	return *f.Score
}
