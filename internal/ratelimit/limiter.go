package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	PerMinute int
	PerHour   int
	// Burst dimension: short spikes are smoothed by a token bucket even
	// when the window ceilings still have room.
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() Config {
	return Config{
		PerMinute:         30,
		PerHour:           500,
		RequestsPerSecond: 10,
		BurstSize:         20,
	}
}

// windowState tracks one fixed window. Rollover is lazy: checked on access,
// never swept in the background.
type windowState struct {
	count int
	start time.Time
	width time.Duration
	limit int
}

func (w *windowState) roll(now time.Time) {
	if now.Sub(w.start) >= w.width {
		w.start = now.Truncate(w.width)
		w.count = 0
	}
}

func (w *windowState) remaining(now time.Time) int {
	w.roll(now)
	r := w.limit - w.count
	if r < 0 {
		return 0
	}
	return r
}

type keyState struct {
	minute windowState
	hour   windowState
	burst  *rate.Limiter
}

// Limiter admits requests per key only while the per-minute window, the
// per-hour window, and the burst bucket all have capacity. Keys sharing a
// provider observe one consistent count.
type Limiter struct {
	mu       sync.Mutex
	keys     map[string]*keyState
	defaults Config
	now      func() time.Time
}

func New(cfg Config) *Limiter {
	return &Limiter{
		keys:     make(map[string]*keyState),
		defaults: cfg,
		now:      time.Now,
	}
}

func NewWithDefaults() *Limiter {
	return New(DefaultConfig())
}

func (l *Limiter) state(key string) *keyState {
	ks, ok := l.keys[key]
	if ok {
		return ks
	}
	now := l.now()
	ks = &keyState{
		minute: windowState{start: now.Truncate(time.Minute), width: time.Minute, limit: l.defaults.PerMinute},
		hour:   windowState{start: now.Truncate(time.Hour), width: time.Hour, limit: l.defaults.PerHour},
		burst:  rate.NewLimiter(rate.Limit(l.defaults.RequestsPerSecond), l.defaults.BurstSize),
	}
	l.keys[key] = ks
	return ks
}

// SetKeyLimits overrides the window ceilings for one key.
func (l *Limiter) SetKeyLimits(key string, perMinute, perHour int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ks := l.state(key)
	ks.minute.limit = perMinute
	ks.hour.limit = perHour
}

// CheckLimit reports whether a request under key may proceed right now. It
// does not count the request; callers that go ahead must IncrementCounter.
func (l *Limiter) CheckLimit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	ks := l.state(key)
	now := l.now()
	if ks.minute.remaining(now) == 0 || ks.hour.remaining(now) == 0 {
		return false
	}
	return ks.burst.AllowN(now, 1)
}

// IncrementCounter records one admitted request in both windows.
func (l *Limiter) IncrementCounter(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ks := l.state(key)
	now := l.now()
	ks.minute.roll(now)
	ks.hour.roll(now)
	ks.minute.count++
	ks.hour.count++
}

// RemainingRequests returns the tighter of the two window allowances.
func (l *Limiter) RemainingRequests(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	ks := l.state(key)
	now := l.now()
	m := ks.minute.remaining(now)
	h := ks.hour.remaining(now)
	if h < m {
		return h
	}
	return m
}
