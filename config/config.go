// Package config loads the server's runtime configuration: defaults, an
// optional config.yaml or config.json overlay, then environment-variable
// overrides. Grounded on a config.Load convention, generalized from a
// single game's board/power-up knobs to the server-wide knobs named in
// spec.md §6.
package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every configurable server parameter. Struct tags cover
// both overlay formats (config.yaml is tried before config.json).
type Config struct {
	BindHost string `json:"bind_host" yaml:"bind_host"`
	BindPort int    `json:"bind_port" yaml:"bind_port"`

	// MaxNameLength bounds a display name's length, as validated on registration.
	MaxNameLength int `json:"max_name_length" yaml:"max_name_length"`

	// DatabaseURL is the Postgres connection string; empty disables persistence.
	DatabaseURL string `json:"-" yaml:"-"`

	// AuthBaseURL is the external identity provider's base URL, used to fetch
	// its JWKS for bearer-token validation (§6 Authentication port).
	AuthBaseURL string `json:"-" yaml:"-"`

	// Millisecond-denominated overlay fields (neither encoding/json nor
	// gopkg.in/yaml.v3 has native time.Duration support); Load derives
	// the *_-suffixed Duration fields below from these after the
	// YAML/JSON/env passes.
	GuestCleanupIntervalMS       int64 `json:"guest_cleanup_interval_ms" yaml:"guest_cleanup_interval_ms"`
	GuestInactivityThresholdMS   int64 `json:"guest_inactivity_threshold_ms" yaml:"guest_inactivity_threshold_ms"`
	MatchCleanupIntervalMS       int64 `json:"match_cleanup_interval_ms" yaml:"match_cleanup_interval_ms"`
	MatchIdleThresholdMS         int64 `json:"match_idle_threshold_ms" yaml:"match_idle_threshold_ms"`
	DisconnectForfeitThresholdMS int64 `json:"disconnect_forfeit_threshold_ms" yaml:"disconnect_forfeit_threshold_ms"`
	MinTimeoutRetryDelayMS       int64 `json:"min_timeout_retry_delay_ms" yaml:"min_timeout_retry_delay_ms"`

	// GuestCleanupInterval is how often the guest reaper (C15) sweeps for
	// accounts inactive longer than GuestInactivityThreshold.
	GuestCleanupInterval     time.Duration `json:"-" yaml:"-"`
	GuestInactivityThreshold time.Duration `json:"-" yaml:"-"`

	// MatchCleanupInterval is how often the match reaper (C6) sweeps idle
	// Waiting matches older than MatchIdleThreshold.
	MatchCleanupInterval time.Duration `json:"-" yaml:"-"`
	MatchIdleThreshold   time.Duration `json:"-" yaml:"-"`

	// DisconnectForfeitThreshold is how long a rated game's to-move player
	// may be disconnected before the game is forfeited (§4.C9).
	DisconnectForfeitThreshold time.Duration `json:"-" yaml:"-"`

	// MinTimeoutRetryDelay bounds the timeout runner's re-arm sleep (§4.C8).
	MinTimeoutRetryDelay time.Duration `json:"-" yaml:"-"`
}

// Defaults returns a Config with every value from spec.md §6's configuration list.
func Defaults() *Config {
	c := &Config{
		BindHost:                     "0.0.0.0",
		BindPort:                     8080,
		MaxNameLength:                24,
		GuestCleanupIntervalMS:       int64(time.Hour / time.Millisecond),
		GuestInactivityThresholdMS:   int64(24 * time.Hour / time.Millisecond),
		MatchCleanupIntervalMS:       int64(15 * time.Minute / time.Millisecond),
		MatchIdleThresholdMS:         int64(5 * time.Hour / time.Millisecond),
		DisconnectForfeitThresholdMS: int64(120 * time.Second / time.Millisecond),
		MinTimeoutRetryDelayMS:       int64(100 * time.Millisecond / time.Millisecond),
	}
	c.applyDurations()
	return c
}

func (c *Config) applyDurations() {
	c.GuestCleanupInterval = time.Duration(c.GuestCleanupIntervalMS) * time.Millisecond
	c.GuestInactivityThreshold = time.Duration(c.GuestInactivityThresholdMS) * time.Millisecond
	c.MatchCleanupInterval = time.Duration(c.MatchCleanupIntervalMS) * time.Millisecond
	c.MatchIdleThreshold = time.Duration(c.MatchIdleThresholdMS) * time.Millisecond
	c.DisconnectForfeitThreshold = time.Duration(c.DisconnectForfeitThresholdMS) * time.Millisecond
	c.MinTimeoutRetryDelay = time.Duration(c.MinTimeoutRetryDelayMS) * time.Millisecond
}

// Load reads defaults, overlays an optional config.yaml or config.json
// (yaml takes precedence when both are present), then applies
// environment variable overrides. Unset fields keep their default value.
func Load() *Config {
	cfg := Defaults()

	if f, err := os.Open("config.yaml"); err == nil {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.yaml: %v", err)
		}
	} else if f, err := os.Open("config.json"); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			log.Printf("Warning: failed to parse config.json: %v", err)
		}
	}

	overrideString(&cfg.BindHost, "BIND_HOST")
	overrideInt(&cfg.BindPort, "BIND_PORT")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt64(&cfg.GuestCleanupIntervalMS, "GUEST_CLEANUP_INTERVAL_MS")
	overrideInt64(&cfg.GuestInactivityThresholdMS, "GUEST_INACTIVITY_THRESHOLD_MS")
	overrideInt64(&cfg.MatchCleanupIntervalMS, "MATCH_CLEANUP_INTERVAL_MS")
	overrideInt64(&cfg.MatchIdleThresholdMS, "MATCH_IDLE_THRESHOLD_MS")
	overrideInt64(&cfg.DisconnectForfeitThresholdMS, "DISCONNECT_FORFEIT_THRESHOLD_MS")
	overrideInt64(&cfg.MinTimeoutRetryDelayMS, "MIN_TIMEOUT_RETRY_DELAY_MS")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.AuthBaseURL, "AUTH_BASE_URL")

	cfg.applyDurations()
	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideInt64(field *int64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			*field = n
		} else {
			log.Printf("Warning: invalid value for %s: %q", envKey, val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
