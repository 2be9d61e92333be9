// Package orchestrator fans one search out to every requested provider,
// aggregates whatever settles before the deadline, and streams progress to
// the search's room.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/cache"
	"github.com/andriputra/skysearch/internal/filter"
	"github.com/andriputra/skysearch/internal/metrics"
	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/progress"
	"github.com/andriputra/skysearch/internal/providers"
	"github.com/andriputra/skysearch/internal/ranking"
	"github.com/andriputra/skysearch/internal/store"
)

type Config struct {
	// MaxActiveSearches is the admission-control ceiling; submissions over
	// it fail fast and are never queued.
	MaxActiveSearches int
	DefaultTimeout    time.Duration
	CacheTTL          time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxActiveSearches: 8,
		DefaultTimeout:    30 * time.Second,
		CacheTTL:          5 * time.Minute,
	}
}

type activeSearch struct {
	progress  *models.SearchProgress
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

type Orchestrator struct {
	cfg       Config
	registry  *providers.Registry
	store     store.SearchStore
	cache     cache.Cache
	publisher *progress.Publisher
	log       *zap.Logger

	mu     sync.RWMutex
	active map[string]*activeSearch
}

func New(cfg Config, registry *providers.Registry, st store.SearchStore, c cache.Cache, pub *progress.Publisher, log *zap.Logger) *Orchestrator {
	if cfg.MaxActiveSearches <= 0 {
		cfg.MaxActiveSearches = DefaultConfig().MaxActiveSearches
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	return &Orchestrator{
		cfg:       cfg,
		registry:  registry,
		store:     st,
		cache:     c,
		publisher: pub,
		log:       log,
		active:    make(map[string]*activeSearch),
	}
}

type providerResult struct {
	provider string
	flights  []models.Flight
	err      error
}

// Submit runs the full fan-out/aggregate cycle and returns the final
// response. Provider failures degrade the result; only orchestration-level
// problems surface as errors.
func (o *Orchestrator) Submit(ctx context.Context, criteria models.SearchCriteria, opts models.SearchOptions) (resp *models.SearchResponse, err error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	providerNames := opts.Providers
	if len(providerNames) == 0 {
		providerNames = o.registry.Names()
	}

	searchID := uuid.NewString()
	entry := &activeSearch{
		progress: &models.SearchProgress{
			SearchID:     searchID,
			Status:       models.StatusInitializing,
			TotalSources: len(providerNames),
			Results:      []models.Flight{},
			Errors:       []string{},
			StartedAt:    time.Now(),
		},
	}

	o.mu.Lock()
	if len(o.active) >= o.cfg.MaxActiveSearches {
		o.mu.Unlock()
		metrics.SearchesTotal.WithLabelValues("rejected").Inc()
		return nil, models.ErrCapacityExceeded
	}
	o.active[searchID] = entry
	o.mu.Unlock()
	metrics.ActiveSearches.Inc()

	startTime := entry.progress.StartedAt
	record := models.SearchRecord{
		ID:        searchID,
		Criteria:  criteria,
		Status:    models.RecordPending,
		CreatedAt: startTime,
	}
	if _, err := o.store.CreateSearch(ctx, record); err != nil {
		o.finish(searchID)
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, &models.OrchestrationError{SearchID: searchID, Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("orchestration panic", zap.String("search_id", searchID), zap.Any("panic", r))
			o.failSearch(ctx, searchID, entry, fmt.Sprintf("internal error: %v", r))
			resp = nil
			err = &models.OrchestrationError{SearchID: searchID, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	o.publishSnapshot(searchID, entry, progress.EventProgress)

	cacheKey := cache.GenerateKey(criteria, strings.Join(providerNames, ","))
	if opts.UseCache {
		if flights, ok := o.cache.Get(ctx, cacheKey); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			// Cached entries keep the order they were stored with; the
			// caller's sort preference still applies.
			sortBy := opts.SortBy
			if sortBy == "" {
				sortBy = models.SortByPrice
			}
			flights = filter.Sort(flights, sortBy, defaultOrder(sortBy))
			return o.complete(ctx, searchID, entry, criteria, flights, nil, providerNames, startTime, true, opts)
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	timeout := o.cfg.DefaultTimeout
	if opts.TimeoutMs > 0 {
		timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}
	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	entry.cancel = cancel

	o.mutate(entry, func(p *models.SearchProgress) {
		p.Status = models.StatusSearching
		p.Progress = 10
	})
	o.publishSnapshot(searchID, entry, progress.EventProgress)

	// Buffered so provider goroutines can always settle, even after the
	// collector has moved on.
	resultCh := make(chan providerResult, len(providerNames))

	var sem chan struct{}
	if opts.MaxConcurrent > 0 && opts.MaxConcurrent < len(providerNames) {
		sem = make(chan struct{}, opts.MaxConcurrent)
	}

	for _, name := range providerNames {
		go func(name string) {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			adapter, err := o.registry.Get(name)
			if err != nil {
				resultCh <- providerResult{provider: name, err: err}
				return
			}
			flights, err := adapter.Search(searchCtx, criteria)
			resultCh <- providerResult{provider: name, flights: flights, err: err}
		}(name)
	}

	settled := make(map[string]bool, len(providerNames))
	failedProviders := []string{}
	timedOut := false

collect:
	for len(settled) < len(providerNames) {
		select {
		case pr := <-resultCh:
			settled[pr.provider] = true
			if pr.err != nil {
				failedProviders = append(failedProviders, pr.provider)
				o.recordFailure(entry, pr.provider, pr.err)
			} else {
				o.recordSuccess(entry, pr.provider, pr.flights)
			}
			o.publishSnapshot(searchID, entry, progress.EventProgress)
		case <-searchCtx.Done():
			timedOut = !entry.cancelled.Load()
			break collect
		}
	}

	if entry.cancelled.Load() {
		// Cancel already published the terminal event and updated the
		// record; late provider settlements drain into the buffer.
		o.drainLate(searchID, resultCh, len(providerNames)-len(settled))
		metrics.SearchesTotal.WithLabelValues("cancelled").Inc()
		return nil, models.ErrSearchCancelled
	}

	if timedOut {
		for _, name := range providerNames {
			if settled[name] {
				continue
			}
			failedProviders = append(failedProviders, name)
			o.recordFailure(entry, name,
				providers.NewProviderError(name, providers.KindTimeout, context.DeadlineExceeded))
		}
		o.publishSnapshot(searchID, entry, progress.EventProgress)
		o.drainLate(searchID, resultCh, len(providerNames)-len(settled))
	}

	o.mutate(entry, func(p *models.SearchProgress) {
		p.Status = models.StatusAggregating
		p.Progress = 80
	})
	o.publishSnapshot(searchID, entry, progress.EventProgress)

	if entry.cancelled.Load() {
		metrics.SearchesTotal.WithLabelValues("cancelled").Inc()
		return nil, models.ErrSearchCancelled
	}

	snap := o.snapshot(entry)
	flights := ranking.ApplyScores(snap.Results)
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = models.SortByPrice
	}
	flights = filter.Sort(flights, sortBy, defaultOrder(sortBy))

	if opts.UseCache {
		if err := o.cache.Set(ctx, cacheKey, flights, o.cfg.CacheTTL); err != nil {
			o.log.Warn("cache write failed", zap.String("search_id", searchID), zap.Error(err))
		}
	}

	return o.complete(ctx, searchID, entry, criteria, flights, failedProviders, providerNames, startTime, false, opts)
}

func defaultOrder(key models.SortKey) filter.SortOrder {
	if key == models.SortByScore {
		return filter.OrderDesc
	}
	return filter.OrderAsc
}

// complete runs the terminal bookkeeping shared by the cache-hit and
// aggregated paths.
func (o *Orchestrator) complete(ctx context.Context, searchID string, entry *activeSearch, criteria models.SearchCriteria, flights []models.Flight, failedProviders, providerNames []string, startTime time.Time, cacheHit bool, opts models.SearchOptions) (*models.SearchResponse, error) {
	// Claim the terminal state before touching the store. Cancel checks the
	// status under the same lock, so once completed is visible it can no
	// longer succeed and overwrite the record.
	cancelled := false
	o.mu.Lock()
	if entry.cancelled.Load() {
		cancelled = true
	} else {
		entry.progress.Status = models.StatusCompleted
		entry.progress.Progress = 100
		entry.progress.Results = flights
	}
	o.mu.Unlock()
	if cancelled {
		metrics.SearchesTotal.WithLabelValues("cancelled").Inc()
		return nil, models.ErrSearchCancelled
	}

	snap := o.snapshot(entry)

	status := models.RecordCompleted
	if _, err := o.store.UpdateSearch(ctx, searchID, store.RecordPatch{
		Status:  &status,
		Results: flights,
		Errors:  snap.Errors,
	}); err != nil {
		o.failSearch(ctx, searchID, entry, "failed to persist results: "+err.Error())
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		return nil, &models.OrchestrationError{SearchID: searchID, Err: err}
	}

	o.publishSnapshot(searchID, entry, progress.EventCompleted)
	o.finish(searchID)
	metrics.SearchesTotal.WithLabelValues("completed").Inc()

	return &models.SearchResponse{
		SearchID: searchID,
		Criteria: criteria,
		Metadata: models.SearchMetadata{
			TotalResults:       len(flights),
			ProvidersQueried:   len(providerNames),
			ProvidersSucceeded: len(providerNames) - len(failedProviders),
			ProvidersFailed:    len(failedProviders),
			FailedProviders:    failedProviders,
			SearchTimeMs:       time.Since(startTime).Milliseconds(),
			CacheHit:           cacheHit,
		},
		Flights: flights,
		Errors:  snap.Errors,
	}, nil
}

// failSearch marks the record errored and tears the search down. Used for
// orchestration-level failures only, never individual provider errors.
func (o *Orchestrator) failSearch(ctx context.Context, searchID string, entry *activeSearch, reason string) {
	status := models.RecordError
	if _, err := o.store.UpdateSearch(ctx, searchID, store.RecordPatch{
		Status: &status,
		Errors: []string{reason},
	}); err != nil {
		o.log.Error("failed to mark search errored", zap.String("search_id", searchID), zap.Error(err))
	}
	o.mutate(entry, func(p *models.SearchProgress) {
		p.Status = models.StatusFailed
		p.Errors = append(p.Errors, reason)
	})
	o.publishSnapshot(searchID, entry, progress.EventFailed)
	o.finish(searchID)
}

// finish removes the search from the active table and closes its room.
func (o *Orchestrator) finish(searchID string) {
	o.mu.Lock()
	_, ok := o.active[searchID]
	delete(o.active, searchID)
	o.mu.Unlock()
	if ok {
		metrics.ActiveSearches.Dec()
	}
	o.publisher.CloseRoom(searchID)
}

func (o *Orchestrator) drainLate(searchID string, resultCh <-chan providerResult, outstanding int) {
	if outstanding <= 0 {
		return
	}
	go func() {
		for i := 0; i < outstanding; i++ {
			pr := <-resultCh
			o.log.Debug("discarding late provider settlement",
				zap.String("search_id", searchID),
				zap.String("provider", pr.provider),
				zap.Bool("succeeded", pr.err == nil))
		}
	}()
}

func (o *Orchestrator) mutate(entry *activeSearch, fn func(*models.SearchProgress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(entry.progress)
}

func (o *Orchestrator) snapshot(entry *activeSearch) models.SearchProgress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return entry.progress.Snapshot()
}

func (o *Orchestrator) recordSuccess(entry *activeSearch, provider string, flights []models.Flight) {
	o.mutate(entry, func(p *models.SearchProgress) {
		p.CompletedSources = append(p.CompletedSources, provider)
		p.Results = append(p.Results, flights...)
		o.advance(p)
	})
}

func (o *Orchestrator) recordFailure(entry *activeSearch, provider string, err error) {
	o.log.Warn("provider failed", zap.String("provider", provider), zap.Error(err))
	o.mutate(entry, func(p *models.SearchProgress) {
		p.CompletedSources = append(p.CompletedSources, provider)
		p.Errors = append(p.Errors, err.Error())
		o.advance(p)
	})
}

// advance recomputes the running percentage, 10 + 70 * settled/total
// clamped to [10,80], and extrapolates the completion estimate from the
// average time per settled provider. Caller holds o.mu.
func (o *Orchestrator) advance(p *models.SearchProgress) {
	settled := len(p.CompletedSources)
	if p.TotalSources > 0 {
		pct := 10 + (70*settled)/p.TotalSources
		if pct > 80 {
			pct = 80
		}
		p.Progress = pct
	}
	if settled > 0 && settled < p.TotalSources {
		elapsed := time.Since(p.StartedAt)
		perProvider := elapsed / time.Duration(settled)
		eta := time.Now().Add(perProvider * time.Duration(p.TotalSources-settled))
		p.EstimatedCompletion = &eta
	} else {
		p.EstimatedCompletion = nil
	}
}

func (o *Orchestrator) publishSnapshot(searchID string, entry *activeSearch, eventType progress.EventType) {
	snap := o.snapshot(entry)
	o.publisher.Publish(searchID, progress.Event{Type: eventType, Payload: snap})
}

// GetProgress returns a snapshot of an in-flight search.
func (o *Orchestrator) GetProgress(searchID string) (models.SearchProgress, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.active[searchID]
	if !ok {
		return models.SearchProgress{}, models.ErrSearchNotFound
	}
	return entry.progress.Snapshot(), nil
}

// ListActive snapshots every in-flight search.
func (o *Orchestrator) ListActive() []models.SearchProgress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.SearchProgress, 0, len(o.active))
	for _, entry := range o.active {
		out = append(out, entry.progress.Snapshot())
	}
	return out
}

// Cancel stops an active search. It reports false when the search is
// unknown or already past the point of cancellation. In-flight provider
// calls are not force-terminated; their results are discarded on arrival.
func (o *Orchestrator) Cancel(ctx context.Context, searchID, reason string) bool {
	o.mu.Lock()
	entry, ok := o.active[searchID]
	if !ok {
		o.mu.Unlock()
		return false
	}
	status := entry.progress.Status
	if status != models.StatusSearching && status != models.StatusAggregating {
		o.mu.Unlock()
		return false
	}
	entry.cancelled.Store(true)
	entry.progress.Status = models.StatusCancelled
	if reason == "" {
		reason = "cancelled by user"
	}
	entry.progress.Errors = append(entry.progress.Errors, reason)
	snap := entry.progress.Snapshot()
	cancelFn := entry.cancel
	o.mu.Unlock()

	recordStatus := models.RecordError
	if _, err := o.store.UpdateSearch(ctx, searchID, store.RecordPatch{
		Status: &recordStatus,
		Errors: []string{reason},
	}); err != nil {
		o.log.Error("failed to mark cancelled search", zap.String("search_id", searchID), zap.Error(err))
	}

	o.publisher.Publish(searchID, progress.Event{Type: progress.EventCancelled, Payload: snap})
	o.finish(searchID)
	if cancelFn != nil {
		cancelFn()
	}
	return true
}

// FilterResults applies spec to a completed search's stored results. The
// stored record is left untouched; a results_filtered event tells the room
// what happened.
func (o *Orchestrator) FilterResults(ctx context.Context, searchID string, spec *filter.Spec) ([]models.Flight, error) {
	record, ok := o.store.GetSearch(ctx, searchID)
	if !ok {
		return nil, models.ErrSearchNotFound
	}
	if record.Status != models.RecordCompleted {
		return nil, models.ErrSearchNotCompleted
	}
	filtered := filter.Apply(record.Results, spec)
	o.publisher.Publish(searchID, progress.Event{
		Type: progress.EventFiltered,
		Payload: map[string]int{
			"total_results":    len(record.Results),
			"filtered_results": len(filtered),
		},
	})
	return filtered, nil
}

// SortResults re-orders a completed search's stored results.
func (o *Orchestrator) SortResults(ctx context.Context, searchID string, key models.SortKey, order filter.SortOrder) ([]models.Flight, error) {
	record, ok := o.store.GetSearch(ctx, searchID)
	if !ok {
		return nil, models.ErrSearchNotFound
	}
	if record.Status != models.RecordCompleted {
		return nil, models.ErrSearchNotCompleted
	}
	if order == "" {
		order = defaultOrder(key)
	}
	sorted := filter.Sort(record.Results, key, order)
	o.publisher.Publish(searchID, progress.Event{
		Type: progress.EventSorted,
		Payload: map[string]string{
			"sort_by": string(key),
			"order":   string(order),
		},
	})
	return sorted, nil
}

// Health aggregates adapter status and cache reachability.
func (o *Orchestrator) Health(ctx context.Context) map[string]any {
	providerHealth := o.registry.Health(ctx)
	healthy := true
	for _, s := range providerHealth {
		if !s.IsHealthy {
			healthy = false
			break
		}
	}

	cacheOK := true
	if pinger, ok := o.cache.(interface{ Ping(context.Context) error }); ok {
		cacheOK = pinger.Ping(ctx) == nil
	}

	status := "ok"
	if !healthy || !cacheOK {
		status = "degraded"
	}
	return map[string]any{
		"status":    status,
		"providers": providerHealth,
		"cache":     cacheOK,
		"active":    len(o.ListActive()),
	}
}
