package providers

import (
	"time"

	"github.com/andriputra/skysearch/internal/models"
)

// computeTotals fills in the derived itinerary fields from the segments.
func computeTotals(f *models.Flight) {
	if len(f.Segments) == 0 {
		return
	}
	f.Stops = len(f.Segments) - 1
	f.TotalDurationMinutes = int(f.ArrivalTime().Sub(f.DepartureTime()).Minutes())

	if f.Stops > 0 {
		flying := 0
		for _, s := range f.Segments {
			flying += s.DurationMinutes
		}
		if layover := f.TotalDurationMinutes - flying; layover >= 0 {
			f.LayoverMinutes = &layover
		}
	}
}

// parseAmadeusTime accepts the local-time stamps GDS feeds emit, with or
// without a zone offset.
func parseAmadeusTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}
