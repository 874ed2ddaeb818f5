package config

import (
	"os"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultQueryTimeout    = 30 * time.Second
	DefaultPingInterval    = 15 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultHandshakeTTL    = 10 * time.Second
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultReferenceMaxAge = 10 * 24 * time.Hour
	DefaultMaxParallel     = 4
	DefaultCallTimeout     = 2 * time.Minute
)

// ApplyDefaults fills in zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	// Feed defaults
	if c.Feed.QueryTimeout == 0 {
		c.Feed.QueryTimeout = DefaultQueryTimeout
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.HandshakeTTL == 0 {
		c.Feed.HandshakeTTL = DefaultHandshakeTTL
	}
	if c.Feed.RateLimit == 0 {
		c.Feed.RateLimit = DefaultRateLimit
	}
	if c.Feed.RateBurst == 0 {
		c.Feed.RateBurst = DefaultRateBurst
	}

	// Storage defaults
	if c.Storage.Root == "" {
		c.Storage.Root = os.Getenv(EnvRoot)
	}
	if c.Storage.Backend == "" && c.Storage.Root != "" {
		c.Storage.Backend = "file"
	}
	if c.Storage.ReferenceMaxAge == 0 {
		c.Storage.ReferenceMaxAge = DefaultReferenceMaxAge
	}
	applyDBDefaults(&c.Storage.DB)

	// Planner defaults
	if c.Planner.MaxParallel == 0 {
		c.Planner.MaxParallel = DefaultMaxParallel
	}
	if c.Planner.CallTimeout == 0 {
		c.Planner.CallTimeout = DefaultCallTimeout
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
