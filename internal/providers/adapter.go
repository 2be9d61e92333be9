package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andriputra/skysearch/internal/metrics"
	"github.com/andriputra/skysearch/internal/models"
	"github.com/andriputra/skysearch/internal/ratelimit"
	"github.com/andriputra/skysearch/pkg/retry"
)

// Adapter wraps one upstream flight-data source behind a common contract.
type Adapter interface {
	Name() string
	Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Flight, error)
	HealthCheck(ctx context.Context) bool
	Status() Status
	ValidateConfig() bool
	UpdateConfig(patch ConfigPatch)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// ConfigPatch applies partial updates; nil fields leave the current value.
type ConfigPatch struct {
	BaseURL    *string
	APIKey     *string
	Timeout    *time.Duration
	MaxRetries *int
}

// fetchFunc is the only provider-specific part: issue the upstream request
// and normalize its payload.
type fetchFunc func(ctx context.Context, criteria models.SearchCriteria) ([]models.Flight, error)

// baseAdapter carries everything the variants share: rate-limit admission,
// retry with exponential backoff, health accounting, and error
// classification.
type baseAdapter struct {
	name    string
	cfgMu   sync.RWMutex
	cfg     Config
	limiter *ratelimit.Limiter
	policy  retry.Policy
	health  *healthRecord
	log     *zap.Logger
	fetch   fetchFunc
}

func newBaseAdapter(name string, cfg Config, limiter *ratelimit.Limiter, log *zap.Logger) *baseAdapter {
	policy := retry.DefaultPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries + 1
	}
	policy.Retryable = Retryable

	return &baseAdapter{
		name:    name,
		cfg:     cfg,
		limiter: limiter,
		policy:  policy,
		health:  &healthRecord{},
		log:     log.With(zap.String("provider", name)),
	}
}

func (b *baseAdapter) Name() string {
	return b.name
}

func (b *baseAdapter) config() Config {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

func (b *baseAdapter) ValidateConfig() bool {
	cfg := b.config()
	return cfg.BaseURL != "" && cfg.APIKey != ""
}

func (b *baseAdapter) UpdateConfig(patch ConfigPatch) {
	b.cfgMu.Lock()
	defer b.cfgMu.Unlock()
	if patch.BaseURL != nil {
		b.cfg.BaseURL = *patch.BaseURL
	}
	if patch.APIKey != nil {
		b.cfg.APIKey = *patch.APIKey
	}
	if patch.Timeout != nil {
		b.cfg.Timeout = *patch.Timeout
	}
	if patch.MaxRetries != nil {
		b.cfg.MaxRetries = *patch.MaxRetries
		b.policy.MaxAttempts = *patch.MaxRetries + 1
	}
}

func (b *baseAdapter) Status() Status {
	return b.health.status(b.name)
}

func (b *baseAdapter) HealthCheck(_ context.Context) bool {
	return b.ValidateConfig() && b.health.status(b.name).IsHealthy
}

// Search admits the call through the rate limiter, then runs the
// provider-specific fetch under the retry policy. Every attempt, success or
// failure, lands in the health record.
func (b *baseAdapter) Search(ctx context.Context, criteria models.SearchCriteria) ([]models.Flight, error) {
	key := b.rateKey(criteria)
	if !b.limiter.CheckLimit(key) {
		err := NewProviderError(b.name, KindRateLimited, errors.New("request rate exceeded"))
		metrics.ProviderRequests.WithLabelValues(b.name, "rate_limited").Inc()
		return nil, err
	}
	b.limiter.IncrementCounter(key)

	var flights []models.Flight
	err := retry.Do(ctx, b.policy, func() error {
		start := time.Now()
		result, err := b.fetch(ctx, criteria)
		elapsed := time.Since(start)

		b.health.record(elapsed, err)
		metrics.ProviderLatency.WithLabelValues(b.name).Observe(elapsed.Seconds())
		if err != nil {
			metrics.ProviderRequests.WithLabelValues(b.name, "error").Inc()
			b.log.Warn("provider attempt failed", zap.Error(err))
			return err
		}
		metrics.ProviderRequests.WithLabelValues(b.name, "success").Inc()
		flights = result
		return nil
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return flights, nil
}

func (b *baseAdapter) rateKey(criteria models.SearchCriteria) string {
	return b.name + ":" + strings.ToUpper(criteria.Origin) + "-" + strings.ToUpper(criteria.Destination)
}

// wrap guarantees callers always see a *ProviderError.
func (b *baseAdapter) wrap(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProviderError(b.name, KindTimeout, err)
	}
	return NewProviderError(b.name, KindUnavailable, err)
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// doJSON performs one upstream request and decodes the response, converting
// failures into the provider error taxonomy. 429 and 5xx are retryable;
// remaining 4xx are rejections.
func (b *baseAdapter) doJSON(ctx context.Context, req *http.Request, out any) error {
	cfg := b.config()
	client := &http.Client{Timeout: cfg.Timeout}

	resp, err := client.Do(req)
	if err != nil {
		return NewProviderError(b.name, classifyTransport(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
		return NewProviderError(b.name, classifyStatus(resp.StatusCode), statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewProviderError(b.name, KindMalformed, err)
	}
	return nil
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindUnavailable
	default:
		return KindRejected
	}
}

func classifyTransport(err error) ErrorKind {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

// validateAll drops flights whose segments violate the route invariant.
// A payload where nothing survives is malformed.
func validateAll(provider string, flights []models.Flight) ([]models.Flight, error) {
	if len(flights) == 0 {
		return flights, nil
	}
	valid := flights[:0]
	var lastErr error
	for i := range flights {
		if err := flights[i].ValidateSegments(); err != nil {
			lastErr = err
			continue
		}
		valid = append(valid, flights[i])
	}
	if len(valid) == 0 && lastErr != nil {
		return nil, NewProviderError(provider, KindMalformed, lastErr)
	}
	return valid, nil
}
