package config

import "time"

// Defaults returns the baseline configuration. Every field has a usable
// value so a bare `innerloop serve` works with no config file.
func Defaults() *Config {
	return &Config{
		ListenAddr: ":8080",
		Store:      StoreMemory,
		SQLitePath: "innerloop.db",
		SSE: SSEConfig{
			BufferSize:              100,
			PingInterval:            time.Second,
			BackpressureFailTimeout: 2 * time.Second,
			RetryMS:                 1500,
		},
		Jobs: JobsConfig{
			MaxIterations:  10,
			MaxWallTime:    60 * time.Second,
			IdempotencyTTL: 600 * time.Second,
			ReaperInterval: 2 * time.Second,
			TTLFinished:    30 * time.Second,
			TTLFailed:      120 * time.Second,
			TTLCancelled:   60 * time.Second,
		},
		Auth: AuthConfig{
			Require: false,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
		Optimizer: OptimizerConfig{
			TargetModelDefault:   "openrouter/auto",
			EvaluationRubric:     "clarity, brevity, coverage",
			MaxMutationsPerRound: 4,
			MaxCandidates:        8,
			TournamentSize:       2,
			RecombinationRate:    0.3,
			EarlyStopPatience:    3,
			Seed:                 42,
			MaxExamplesPerJob:    16,
		},
		MaxRequestBytes: 1 << 20,
		LogLevel:        "info",
	}
}
