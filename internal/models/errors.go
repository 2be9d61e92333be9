package models

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned synchronously when the active-search
	// ceiling is reached; rejected submissions are not queued.
	ErrCapacityExceeded = errors.New("too many concurrent searches")

	ErrSearchNotFound = errors.New("search not found")

	// ErrSearchCancelled is returned to the submitter when an observer
	// cancels the search mid-flight.
	ErrSearchCancelled = errors.New("search cancelled")

	// ErrSearchNotCompleted guards filter/sort calls against records that
	// have no materialized result set yet.
	ErrSearchNotCompleted = errors.New("search is not completed")
)

// OrchestrationError wraps an unexpected internal failure; provider-scoped
// failures never surface as one.
type OrchestrationError struct {
	SearchID string
	Err      error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("orchestration failed for search %s: %v", e.SearchID, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
