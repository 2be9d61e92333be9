package models

import "time"

type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordCompleted RecordStatus = "completed"
	RecordError     RecordStatus = "error"
)

// SearchRecord is the persisted view of one search. It is created pending
// and mutated exactly once, to completed or error, when orchestration ends.
type SearchRecord struct {
	ID          string         `json:"id"`
	Criteria    SearchCriteria `json:"criteria"`
	Status      RecordStatus   `json:"status"`
	Results     []Flight       `json:"results,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

type SearchStatus string

const (
	StatusInitializing SearchStatus = "initializing"
	StatusSearching    SearchStatus = "searching"
	StatusAggregating  SearchStatus = "aggregating"
	StatusCompleted    SearchStatus = "completed"
	StatusFailed       SearchStatus = "failed"
	StatusCancelled    SearchStatus = "cancelled"
)

func (s SearchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SearchProgress is the in-memory state of one in-flight search. The
// orchestrator owns it exclusively; observers only ever see Snapshot copies.
type SearchProgress struct {
	SearchID            string       `json:"search_id"`
	Status              SearchStatus `json:"status"`
	Progress            int          `json:"progress"`
	CompletedSources    []string     `json:"completed_sources"`
	TotalSources        int          `json:"total_sources"`
	Results             []Flight     `json:"results"`
	Errors              []string     `json:"errors"`
	StartedAt           time.Time    `json:"started_at"`
	EstimatedCompletion *time.Time   `json:"estimated_completion,omitempty"`
}

// Snapshot copies the slices so the caller can hold the value across
// subsequent orchestrator mutations.
func (p *SearchProgress) Snapshot() SearchProgress {
	out := *p
	out.CompletedSources = append([]string(nil), p.CompletedSources...)
	out.Results = append([]Flight(nil), p.Results...)
	out.Errors = append([]string(nil), p.Errors...)
	return out
}

type SearchMetadata struct {
	TotalResults       int      `json:"total_results"`
	ProvidersQueried   int      `json:"providers_queried"`
	ProvidersSucceeded int      `json:"providers_succeeded"`
	ProvidersFailed    int      `json:"providers_failed"`
	FailedProviders    []string `json:"failed_providers,omitempty"`
	SearchTimeMs       int64    `json:"search_time_ms"`
	CacheHit           bool     `json:"cache_hit"`
}

type SearchResponse struct {
	SearchID string         `json:"search_id"`
	Criteria SearchCriteria `json:"criteria"`
	Metadata SearchMetadata `json:"metadata"`
	Flights  []Flight       `json:"flights"`
	Errors   []string       `json:"errors,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
