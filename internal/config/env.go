package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envOverrides maps environment variables to config field setters.
// Durations accept either Go duration syntax ("1.5s") or bare seconds.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{"INNERLOOP_LISTEN_ADDR", func(c *Config, v string) { c.ListenAddr = v }},
	{"INNERLOOP_JOB_STORE", func(c *Config, v string) { c.Store = StoreBackend(v) }},
	{"INNERLOOP_SQLITE_PATH", func(c *Config, v string) { c.SQLitePath = v }},
	{"INNERLOOP_LOG_LEVEL", func(c *Config, v string) { c.LogLevel = v }},
	{"INNERLOOP_WEBHOOK_URL", func(c *Config, v string) { c.WebhookURL = v }},

	{"INNERLOOP_SSE_BUFFER_SIZE", func(c *Config, v string) { setInt(&c.SSE.BufferSize, v) }},
	{"INNERLOOP_SSE_PING_INTERVAL_S", func(c *Config, v string) { setDuration(&c.SSE.PingInterval, v) }},
	{"INNERLOOP_SSE_BACKPRESSURE_FAIL_TIMEOUT_S", func(c *Config, v string) { setDuration(&c.SSE.BackpressureFailTimeout, v) }},
	{"INNERLOOP_SSE_RETRY_MS", func(c *Config, v string) { setInt(&c.SSE.RetryMS, v) }},

	{"INNERLOOP_MAX_ITERATIONS", func(c *Config, v string) { setInt(&c.Jobs.MaxIterations, v) }},
	{"INNERLOOP_MAX_WALL_TIME_S", func(c *Config, v string) { setDuration(&c.Jobs.MaxWallTime, v) }},
	{"INNERLOOP_IDEMPOTENCY_TTL_S", func(c *Config, v string) { setDuration(&c.Jobs.IdempotencyTTL, v) }},
	{"INNERLOOP_JOB_REAPER_INTERVAL_S", func(c *Config, v string) { setDuration(&c.Jobs.ReaperInterval, v) }},
	{"INNERLOOP_JOB_TTL_FINISHED_S", func(c *Config, v string) { setDuration(&c.Jobs.TTLFinished, v) }},
	{"INNERLOOP_JOB_TTL_FAILED_S", func(c *Config, v string) { setDuration(&c.Jobs.TTLFailed, v) }},
	{"INNERLOOP_JOB_TTL_CANCELLED_S", func(c *Config, v string) { setDuration(&c.Jobs.TTLCancelled, v) }},

	{"INNERLOOP_REQUIRE_AUTH", func(c *Config, v string) { setBool(&c.Auth.Require, v) }},
	{"INNERLOOP_API_BEARER_TOKENS", func(c *Config, v string) { c.Auth.BearerTokens = splitCommas(v) }},
	{"INNERLOOP_CORS_ALLOWED_ORIGINS", func(c *Config, v string) { c.CORSAllowedOrigins = splitCommas(v) }},

	{"INNERLOOP_RATE_LIMIT_OPTIMIZE_RPS", func(c *Config, v string) { setFloat(&c.RateLimit.RPS, v) }},
	{"INNERLOOP_RATE_LIMIT_OPTIMIZE_BURST", func(c *Config, v string) { setFloat(&c.RateLimit.Burst, v) }},
	{"INNERLOOP_MAX_REQUEST_BYTES", func(c *Config, v string) { setInt64(&c.MaxRequestBytes, v) }},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setInt64(dst *int64, v string) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, v string) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

func setBool(dst *bool, v string) {
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

// setDuration accepts Go duration syntax or a bare number of seconds.
func setDuration(dst *time.Duration, v string) {
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(f * float64(time.Second))
	}
}

func splitCommas(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
