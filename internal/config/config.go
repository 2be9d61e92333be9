package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port string `env:"PORT" env-default:"8080"`

	CacheEnabled bool          `env:"CACHE_ENABLED" env-default:"true"`
	RedisAddr    string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPass    string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB      int           `env:"REDIS_DB" env-default:"0"`
	CacheTTL     time.Duration `env:"CACHE_TTL" env-default:"5m"`

	MaxActiveSearches int           `env:"MAX_ACTIVE_SEARCHES" env-default:"8"`
	SearchTimeout     time.Duration `env:"SEARCH_TIMEOUT" env-default:"30s"`

	RateLimitPerMinute int     `env:"RATE_LIMIT_PER_MINUTE" env-default:"30"`
	RateLimitPerHour   int     `env:"RATE_LIMIT_PER_HOUR" env-default:"500"`
	RateLimitRPS       float64 `env:"RATE_LIMIT_RPS" env-default:"10"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" env-default:"20"`

	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" env-default:"10s"`
	ProviderMaxRetries int           `env:"PROVIDER_MAX_RETRIES" env-default:"3"`

	AmadeusBaseURL string `env:"AMADEUS_BASE_URL" env-default:"https://api.amadeus.com"`
	AmadeusAPIKey  string `env:"AMADEUS_API_KEY" env-default:""`
	DuffelBaseURL  string `env:"DUFFEL_BASE_URL" env-default:"https://api.duffel.com"`
	DuffelAPIKey   string `env:"DUFFEL_API_KEY" env-default:""`
	KiwiBaseURL    string `env:"KIWI_BASE_URL" env-default:"https://api.tequila.kiwi.com"`
	KiwiAPIKey     string `env:"KIWI_API_KEY" env-default:""`

	Env string `env:"APP_ENV" env-default:"development"`
}

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
