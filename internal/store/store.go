// Package store is the persistence collaborator for search records. The
// orchestrator treats it as a black box behind SearchStore.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/andriputra/skysearch/internal/models"
)

type SearchStore interface {
	CreateSearch(ctx context.Context, record models.SearchRecord) (models.SearchRecord, error)
	GetSearch(ctx context.Context, id string) (models.SearchRecord, bool)
	UpdateSearch(ctx context.Context, id string, patch RecordPatch) (models.SearchRecord, error)
}

// RecordPatch applies the terminal mutation; nil fields are untouched.
type RecordPatch struct {
	Status  *models.RecordStatus
	Results []models.Flight
	Errors  []string
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.SearchRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.SearchRecord)}
}

func (s *MemoryStore) CreateSearch(_ context.Context, record models.SearchRecord) (models.SearchRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return record, nil
}

func (s *MemoryStore) GetSearch(_ context.Context, id string) (models.SearchRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok
}

func (s *MemoryStore) UpdateSearch(_ context.Context, id string, patch RecordPatch) (models.SearchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return models.SearchRecord{}, models.ErrSearchNotFound
	}
	if patch.Status != nil {
		record.Status = *patch.Status
		if record.Status != models.RecordPending {
			now := time.Now()
			record.CompletedAt = &now
		}
	}
	if patch.Results != nil {
		record.Results = patch.Results
	}
	if patch.Errors != nil {
		record.Errors = patch.Errors
	}
	s.records[id] = record
	return record, nil
}
