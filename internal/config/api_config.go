package config

import (
	"strings"
	"time"
)

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetRetryAttempts() int
	GetRateLimit() float64
	GetRateBurst() int
}

type apiFile struct {
	BaseURL        string  `toml:"base_url"`
	RequestTimeout string  `toml:"request_timeout"`
	RetryAttempts  int     `toml:"retry_attempts"`
	RateLimit      float64 `toml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst"`
}

type API struct {
	file apiFile
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend root without a trailing slash.
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv("LEGID_API_URL", orDefault(a.file.BaseURL, "http://localhost:8000")), "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return getEnvDuration("LEGID_REQUEST_TIMEOUT", parseDuration(a.file.RequestTimeout, 15*time.Second))
}

// GetRetryAttempts is the total number of attempts for idempotent reads.
func (a API) GetRetryAttempts() int {
	return getEnvInt("LEGID_RETRY_ATTEMPTS", orDefault(a.file.RetryAttempts, 3))
}

// GetRateLimit is the sustained requests per second allowed to the backend.
func (a API) GetRateLimit() float64 {
	return getEnvFloat("LEGID_RATE_LIMIT", orDefault(a.file.RateLimit, 10))
}

func (a API) GetRateBurst() int {
	return getEnvInt("LEGID_RATE_BURST", orDefault(a.file.RateBurst, 20))
}
