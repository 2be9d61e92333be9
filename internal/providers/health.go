package providers

import (
	"sync"
	"time"
)

// Status is the externally visible health summary of one adapter.
type Status struct {
	Provider              string    `json:"provider"`
	IsHealthy             bool      `json:"is_healthy"`
	LastSuccessfulRequest time.Time `json:"last_successful_request"`
	ErrorRate             float64   `json:"error_rate"`
	AverageResponseTimeMs int64     `json:"average_response_time_ms"`
	LastError             string    `json:"last_error,omitempty"`
}

// healthRecord accumulates per-attempt counters for the adapter's lifetime.
type healthRecord struct {
	mu            sync.Mutex
	total         int64
	succeeded     int64
	failed        int64
	cumulativeDur time.Duration
	lastSuccess   time.Time
	lastError     error
}

func (h *healthRecord) record(dur time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.cumulativeDur += dur
	if err != nil {
		h.failed++
		h.lastError = err
		return
	}
	h.succeeded++
	h.lastSuccess = time.Now()
}

func (h *healthRecord) status(provider string) Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Status{
		Provider:              provider,
		LastSuccessfulRequest: h.lastSuccess,
	}
	if h.total > 0 {
		s.ErrorRate = float64(h.failed) / float64(h.total)
		s.AverageResponseTimeMs = (h.cumulativeDur / time.Duration(h.total)).Milliseconds()
	}
	if h.lastError != nil {
		s.LastError = h.lastError.Error()
	}
	// Untouched adapters count as healthy; otherwise failures must stay at
	// or below half of all attempts.
	s.IsHealthy = h.total == 0 || s.ErrorRate <= 0.5
	return s
}
