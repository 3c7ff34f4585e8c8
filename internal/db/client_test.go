package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSNDefaults(t *testing.T) {
	cfg := Config{Host: "postgres", Port: 5432, User: "epion", Password: "pw", Database: "epion"}
	assert.Equal(t, "host=postgres port=5432 user=epion password=pw dbname=epion sslmode=require", cfg.DSN())

	cfg.SSLMode = "disable"
	assert.Contains(t, cfg.DSN(), "sslmode=disable")
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 25, cfg.MaxConnections)
	assert.Equal(t, 5, cfg.IdleConnections)
	assert.Equal(t, 5*time.Minute, cfg.MaxLifetime)

	kept := Config{MaxConnections: 3}.withDefaults()
	assert.Equal(t, 3, kept.MaxConnections)
}
