package config

import "time"

// Config is the root configuration for the data layer.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	Storage  StorageConfig  `yaml:"storage"`
	Calendar CalendarConfig `yaml:"calendar"`
	Planner  PlannerConfig  `yaml:"planner"`
}

// FeedConfig holds upstream feed connection settings.
type FeedConfig struct {
	URL          string        `yaml:"url"`            // WebSocket endpoint of the feed gateway
	KeyID        string        `yaml:"key_id"`         // License key ID
	Secret       string        `yaml:"secret"`         // Shared secret for handshake signing
	QueryTimeout time.Duration `yaml:"query_timeout"`  // Per-query response deadline
	PingInterval time.Duration `yaml:"ping_interval"`  // Keepalive interval
	RateLimit    float64       `yaml:"rate_limit"`     // Queries per second allowed by the license
	RateBurst    int           `yaml:"rate_burst"`     // Burst allowance
	WriteTimeout time.Duration `yaml:"write_timeout"`  // Socket write deadline
	HandshakeTTL time.Duration `yaml:"handshake_ttl"`  // Dial + session handshake deadline
}

// StorageConfig selects and configures the local cache store.
//
// Backend "file" persists under Root; "postgres" uses the DB connection;
// "" (or a missing root for the file backend) disables caching entirely and
// every request goes straight to the feed.
type StorageConfig struct {
	Backend         string        `yaml:"backend"` // "file", "postgres", or "" (disabled)
	Root            string        `yaml:"root"`    // File backend root; FEEDCACHE_ROOT overrides when empty
	DB              DBConfig      `yaml:"db"`      // Postgres backend connection
	ReferenceMaxAge time.Duration `yaml:"reference_max_age"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// CalendarConfig points at the exchange/session tables. When Path is empty
// the embedded default table is used.
type CalendarConfig struct {
	Path string `yaml:"path"`
}

// PlannerConfig holds request planner policy.
type PlannerConfig struct {
	ForceRefresh bool          `yaml:"force_refresh"` // Re-fetch the full range even when fully cached
	MaxParallel  int           `yaml:"max_parallel"`  // Concurrent sub-range fetches per call
	CallTimeout  time.Duration `yaml:"call_timeout"`  // End-to-end deadline per logical call
}
