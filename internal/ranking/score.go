package ranking

import (
	"math"

	"github.com/andriputra/skysearch/internal/models"
)

const (
	priceWeight    = 0.5
	durationWeight = 0.3
	stopsWeight    = 0.2
)

// ApplyScores annotates each flight with a 0-100 desirability score, higher
// is better. Cheapest, fastest, most direct itineraries score highest
// relative to the batch they were aggregated with.
func ApplyScores(flights []models.Flight) []models.Flight {
	if len(flights) == 0 {
		return flights
	}

	maxPrice := 0.0
	maxDuration := 0.0
	for _, f := range flights {
		if f.Pricing.Amount > maxPrice {
			maxPrice = f.Pricing.Amount
		}
		if d := float64(f.TotalDurationMinutes); d > maxDuration {
			maxDuration = d
		}
	}

	result := make([]models.Flight, len(flights))
	for i, f := range flights {
		result[i] = f
		score := desirability(f, maxPrice, maxDuration)
		result[i].Score = &score
	}
	return result
}

func desirability(f models.Flight, maxPrice, maxDuration float64) float64 {
	pricePenalty := 0.0
	if maxPrice > 0 {
		pricePenalty = (f.Pricing.Amount / maxPrice) * 100
	}

	durationPenalty := 0.0
	if maxDuration > 0 {
		durationPenalty = (float64(f.TotalDurationMinutes) / maxDuration) * 100
	}

	stopsPenalty := float64(f.Stops) * 15

	penalty := pricePenalty*priceWeight + durationPenalty*durationWeight + stopsPenalty*stopsWeight
	score := 100 - penalty
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}
