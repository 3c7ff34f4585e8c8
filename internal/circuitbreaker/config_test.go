package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfigDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), PostgresConfig())
}

func TestRedisConfigEnvOverrides(t *testing.T) {
	t.Setenv("EPION_CB_REDIS_FAILURE_THRESHOLD", "7")
	t.Setenv("EPION_CB_REDIS_TIMEOUT", "2s")
	t.Setenv("EPION_CB_REDIS_MAX_REQUESTS", "not-a-number")

	cfg := RedisConfig()
	assert.Equal(t, uint32(7), cfg.FailureThreshold)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(5), cfg.MaxRequests)
	assert.Equal(t, 30*time.Second, cfg.Interval)
}
