package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the client needs from the environment so main
// stays lean. Tuning knobs default to the production values; tests build the
// nested structs directly with millisecond durations.
type Config struct {
	Addr     string
	CacheDir string

	// RedisURL selects the redis-backed profile store when set; empty means
	// the in-memory store (development).
	RedisURL string

	// IdentityAPIBaseURL selects the REST identity provider when set; empty
	// means the in-memory provider (development).
	IdentityAPIBaseURL string
	IdentityAPIKey     string

	// ProbeURL, when set, enables the periodic connectivity probe.
	ProbeURL      string
	ProbeInterval time.Duration

	Resolver Resolver
	Guard    Guard
}

// Resolver holds the enrichment retry and resolution deadlines.
type Resolver struct {
	MaxAttempts       int
	AttemptTimeout    time.Duration
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	ResolutionTimeout time.Duration
}

// Guard holds the route-guard escalation deadlines.
type Guard struct {
	RetryAfter   time.Duration
	TimeoutAfter time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:               envString("CONCORD_ADDR", ":8080"),
		CacheDir:           envString("CONCORD_CACHE_DIR", "./data/cache"),
		RedisURL:           os.Getenv("CONCORD_REDIS_URL"),
		IdentityAPIBaseURL: os.Getenv("CONCORD_IDENTITY_API_URL"),
		IdentityAPIKey:     os.Getenv("CONCORD_IDENTITY_API_KEY"),
		ProbeURL:           os.Getenv("CONCORD_PROBE_URL"),
		ProbeInterval:      envDuration("CONCORD_PROBE_INTERVAL", 30*time.Second),
		Resolver: Resolver{
			MaxAttempts:       envInt("CONCORD_ENRICH_MAX_ATTEMPTS", 5),
			AttemptTimeout:    envDuration("CONCORD_ENRICH_ATTEMPT_TIMEOUT", 10*time.Second),
			BaseDelay:         envDuration("CONCORD_ENRICH_BASE_DELAY", time.Second),
			MaxDelay:          envDuration("CONCORD_ENRICH_MAX_DELAY", 30*time.Second),
			ResolutionTimeout: envDuration("CONCORD_RESOLUTION_TIMEOUT", 15*time.Second),
		},
		Guard: Guard{
			RetryAfter:   envDuration("CONCORD_GUARD_RETRY_AFTER", 5*time.Second),
			TimeoutAfter: envDuration("CONCORD_GUARD_TIMEOUT_AFTER", 10*time.Second),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
