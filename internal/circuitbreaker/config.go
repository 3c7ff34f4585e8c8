package circuitbreaker

import (
	"os"
	"strconv"
	"time"
)

// PostgresConfig returns the breaker settings for article storage, with
// EPION_CB_POSTGRES_* environment overrides.
func PostgresConfig() Config {
	return fromEnv("EPION_CB_POSTGRES", DefaultConfig())
}

// RedisConfig returns the breaker settings for the source cache. The cache
// is optional, so it trips sooner and probes again sooner than Postgres.
func RedisConfig() Config {
	return fromEnv("EPION_CB_REDIS", Config{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	})
}

func fromEnv(prefix string, base Config) Config {
	base.MaxRequests = getEnvUint32(prefix+"_MAX_REQUESTS", base.MaxRequests)
	base.Interval = getEnvDuration(prefix+"_INTERVAL", base.Interval)
	base.Timeout = getEnvDuration(prefix+"_TIMEOUT", base.Timeout)
	base.FailureThreshold = getEnvUint32(prefix+"_FAILURE_THRESHOLD", base.FailureThreshold)
	base.SuccessThreshold = getEnvUint32(prefix+"_SUCCESS_THRESHOLD", base.SuccessThreshold)
	return base
}

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil && parsed > 0 {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
