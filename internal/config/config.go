// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// JobQueueSize bounds the in-memory analysis job queue.
	JobQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// BenchmarkFile points at the YAML benchmark reference data.
	BenchmarkFile string `koanf:"benchmark_file"`

	// WatchBenchmarks enables hot-reload of the benchmark file.
	WatchBenchmarks bool `koanf:"watch_benchmarks"`

	// CheatThreshold is the suspicion score above which a recording is flagged.
	CheatThreshold float64 `koanf:"cheat_threshold"`

	// MaxRetries caps user-initiated analysis retries per recording.
	MaxRetries int `koanf:"max_retries"`

	// AnalysisLatencyMinMS and AnalysisLatencyMaxMS simulate external analyzer latency bounds.
	AnalysisLatencyMinMS int `koanf:"analysis_latency_min_ms"`
	AnalysisLatencyMaxMS int `koanf:"analysis_latency_max_ms"`
}

// New creates a Config using provided options. Context is accepted first to
// satisfy the project-wide convention; it is reserved for future use (e.g.,
// loading from env/files) and is currently unused.
func New(_ context.Context) *Config {
	c := &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		JobQueueSize:         50_000,
		WorkerCount:          runtime.NumCPU() * 4,
		MaxLeaderboardLimit:  100,
		BenchmarkFile:        "benchmarks.yaml",
		WatchBenchmarks:      false,
		CheatThreshold:       0.7,
		MaxRetries:           3,
		AnalysisLatencyMinMS: 80,
		AnalysisLatencyMaxMS: 150,
	}
	return c
}
