package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andriputra/skysearch/internal/models"
)

// Cache stores previously aggregated results under a request fingerprint.
// Concurrent writers for the same key are expected to carry equivalent
// values, so last-writer-wins without locking.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Flight, bool)
	Set(ctx context.Context, key string, flights []models.Flight, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	InvalidateRoute(ctx context.Context, origin, destination string) error
	Close() error
}

const keyPrefix = "search"

// GenerateKey builds a deterministic fingerprint of the normalized criteria
// and provider set. Airport codes are upper-cased and trimmed, the departure
// date is truncated to the day, and passenger counts and the flexible-dates
// flag are part of the key so searches with different party sizes never
// share an entry.
func GenerateKey(criteria models.SearchCriteria, provider string) string {
	origin := normalizeCode(criteria.Origin)
	dest := normalizeCode(criteria.Destination)

	returnDate := ""
	if criteria.ReturnDate != nil {
		returnDate = truncateDate(*criteria.ReturnDate)
	}

	keyData := struct {
		Origin        string
		Destination   string
		DepartureDate string
		ReturnDate    string
		Adults        int
		Children      int
		Infants       int
		CabinClass    string
		FlexibleDates bool
		Provider      string
	}{
		Origin:        origin,
		Destination:   dest,
		DepartureDate: truncateDate(criteria.DepartureDate),
		ReturnDate:    returnDate,
		Adults:        criteria.Passengers.Adults,
		Children:      criteria.Passengers.Children,
		Infants:       criteria.Passengers.Infants,
		CabinClass:    strings.ToLower(strings.TrimSpace(criteria.CabinClass)),
		FlexibleDates: criteria.FlexibleDates,
		Provider:      strings.ToLower(strings.TrimSpace(provider)),
	}

	data, _ := json.Marshal(keyData)
	hash := sha256.Sum256(data)
	return keyPrefix + ":" + origin + ":" + dest + ":" + hex.EncodeToString(hash[:])
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// truncateDate drops any time-of-day component from an ISO-ish date string.
func truncateDate(date string) string {
	date = strings.TrimSpace(date)
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.Format("2006-01-02")
	}
	if len(date) > 10 {
		return date[:10]
	}
	return date
}

func routePattern(origin, destination string) string {
	return keyPrefix + ":" + normalizeCode(origin) + ":" + normalizeCode(destination) + ":*"
}

type RedisCache struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]models.Flight, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var flights []models.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, false
	}
	return flights, true
}

func (c *RedisCache) Set(ctx context.Context, key string, flights []models.Flight, ttl time.Duration) error {
	data, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) InvalidateRoute(ctx context.Context, origin, destination string) error {
	iter := c.client.Scan(ctx, 0, routePattern(origin, destination), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
