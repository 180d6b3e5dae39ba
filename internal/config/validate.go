package config

import "fmt"

// Validate checks invariants the rest of the system assumes.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("invalid store backend: %q (must be %q or %q)", c.Store, StoreMemory, StoreSQLite)
	}

	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite_path required when store is %q", StoreSQLite)
	}

	if c.SSE.BufferSize < 1 {
		return fmt.Errorf("sse.buffer_size must be >= 1, got %d", c.SSE.BufferSize)
	}
	if c.SSE.PingInterval <= 0 {
		return fmt.Errorf("sse.ping_interval must be positive")
	}
	if c.SSE.BackpressureFailTimeout <= 0 {
		return fmt.Errorf("sse.backpressure_fail_timeout must be positive")
	}
	if c.SSE.RetryMS < 0 {
		return fmt.Errorf("sse.retry_ms cannot be negative: %d", c.SSE.RetryMS)
	}

	if c.Jobs.MaxIterations < 1 {
		return fmt.Errorf("jobs.max_iterations must be >= 1, got %d", c.Jobs.MaxIterations)
	}
	if c.Jobs.MaxWallTime <= 0 {
		return fmt.Errorf("jobs.max_wall_time must be positive")
	}
	if c.Jobs.ReaperInterval <= 0 {
		return fmt.Errorf("jobs.reaper_interval must be positive")
	}

	if c.Auth.Require && len(c.Auth.BearerTokens) == 0 {
		return fmt.Errorf("auth.require is set but no bearer tokens configured")
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.rps must be > 0 and burst >= 1")
	}

	if c.MaxRequestBytes < 1 {
		return fmt.Errorf("max_request_bytes must be >= 1, got %d", c.MaxRequestBytes)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	return nil
}
