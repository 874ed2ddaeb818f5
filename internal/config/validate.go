package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.RateLimit < 0 {
		return errors.New("feed.rate_limit must be >= 0")
	}
	if c.Feed.RateBurst < 1 {
		return errors.New("feed.rate_burst must be >= 1")
	}

	switch c.Storage.Backend {
	case "":
		// Caching disabled; nothing to check.
	case "file":
		if c.Storage.Root == "" {
			return errors.New("storage.root is required for the file backend")
		}
	case "postgres":
		if err := c.Storage.DB.validate("storage.db"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be \"file\", \"postgres\" or empty, got %q", c.Storage.Backend)
	}

	if c.Planner.MaxParallel < 1 {
		return errors.New("planner.max_parallel must be >= 1")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
