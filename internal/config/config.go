package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreBackend selects the durable job store implementation.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreSQLite StoreBackend = "sqlite"
)

// Config holds every option the server recognizes. Values load from an
// optional YAML file, then INNERLOOP_* environment overrides, then Validate.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// Store selects the job store backend: "memory" or "sqlite".
	Store StoreBackend `yaml:"store"`

	// SQLitePath is the database file used when Store is "sqlite".
	SQLitePath string `yaml:"sqlite_path"`

	// SSE streaming knobs.
	SSE SSEConfig `yaml:"sse"`

	// Jobs controls job execution and retention.
	Jobs JobsConfig `yaml:"jobs"`

	// Auth controls the bearer-token boundary.
	Auth AuthConfig `yaml:"auth"`

	// RateLimit bounds POST /optimize submissions per client IP.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Optimizer tunes the default optimization driver.
	Optimizer OptimizerConfig `yaml:"optimizer"`

	// MaxRequestBytes rejects larger request bodies with 413.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// CORSAllowedOrigins enables CORS for the listed origins when non-empty.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	// WebhookURL, when set, receives a POST for every job terminal event.
	WebhookURL string `yaml:"webhook_url"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// SSEConfig bounds the per-job event pipeline.
type SSEConfig struct {
	// BufferSize caps both the per-job channel depth and the number of
	// events the store retains per job.
	BufferSize int `yaml:"buffer_size"`

	// PingInterval is the keep-alive cadence and channel read timeout.
	PingInterval time.Duration `yaml:"ping_interval"`

	// BackpressureFailTimeout bounds how long an emit may wait on a full
	// channel before the job is failed with sse_backpressure.
	BackpressureFailTimeout time.Duration `yaml:"backpressure_fail_timeout"`

	// RetryMS is advertised in the stream prelude as the client
	// reconnect delay.
	RetryMS int `yaml:"retry_ms"`
}

// JobsConfig controls execution limits and in-memory retention.
type JobsConfig struct {
	// MaxIterations clamps the submitted iteration count.
	MaxIterations int `yaml:"max_iterations"`

	// MaxWallTime is the per-job cooperative deadline.
	MaxWallTime time.Duration `yaml:"max_wall_time"`

	// IdempotencyTTL is the maximum age of a usable idempotency record.
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`

	// ReaperInterval is the sweep period for terminal jobs.
	ReaperInterval time.Duration `yaml:"reaper_interval"`

	// In-memory retention per terminal status.
	TTLFinished  time.Duration `yaml:"ttl_finished"`
	TTLFailed    time.Duration `yaml:"ttl_failed"`
	TTLCancelled time.Duration `yaml:"ttl_cancelled"`
}

// AuthConfig controls the bearer-token boundary.
type AuthConfig struct {
	// Require enables bearer auth for all non-health endpoints.
	Require bool `yaml:"require"`

	// BearerTokens is the set of accepted tokens.
	BearerTokens []string `yaml:"bearer_tokens"`
}

// RateLimitConfig is a token bucket per client IP for job submission.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst float64 `yaml:"burst"`
}

// OptimizerConfig tunes the built-in optimization driver.
type OptimizerConfig struct {
	TargetModelDefault   string  `yaml:"target_model_default"`
	EvaluationRubric     string  `yaml:"evaluation_rubric"`
	MaxMutationsPerRound int     `yaml:"max_mutations_per_round"`
	MaxCandidates        int     `yaml:"max_candidates"`
	TournamentSize       int     `yaml:"tournament_size"`
	RecombinationRate    float64 `yaml:"recombination_rate"`
	EarlyStopPatience    int     `yaml:"early_stop_patience"`
	Seed                 int64   `yaml:"seed"`
	MaxExamplesPerJob    int     `yaml:"max_examples_per_job"`
}

// Load reads configuration from an optional YAML file at path (empty path
// skips the file), applies environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
