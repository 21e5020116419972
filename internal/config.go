package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds engine-wide defaults. Per-run overrides live on
// DownloadRequest; this struct supplies the values a CLI falls back to when
// the operator doesn't override them.
type Config struct {
	DefaultParallelism int
	MaxParallelism     int
	DefaultMaxRetries  int
	BackoffDelay       time.Duration

	AggregatorTickMin time.Duration
	AggregatorTickMax time.Duration
	AggregatorTick    time.Duration
	HeatmapColumns    int

	MinBufferSize     int
	MaxBufferSize     int
	DefaultBufferSize int

	// Logging configuration
	LogLevel  string
	QuietMode bool
	LogFile   string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultParallelism: 8,
		MaxParallelism:     MaxParallelism,
		DefaultMaxRetries:  3,
		BackoffDelay:       2 * time.Second,

		AggregatorTickMin: 250 * time.Millisecond,
		AggregatorTickMax: 500 * time.Millisecond,
		AggregatorTick:    350 * time.Millisecond,
		HeatmapColumns:    16,

		MinBufferSize:     64 * 1024,
		MaxBufferSize:     8 * 1024 * 1024,
		DefaultBufferSize: 256 * 1024,

		LogLevel:  "info",
		QuietMode: false,
		LogFile:   "", // empty means stderr
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if parallelism := os.Getenv("RANGEFETCH_PARALLELISM"); parallelism != "" {
		if n, err := strconv.Atoi(parallelism); err == nil && n > 0 && n <= c.MaxParallelism {
			c.DefaultParallelism = n
		}
	}

	if retries := os.Getenv("RANGEFETCH_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil && n > 0 {
			c.DefaultMaxRetries = n
		}
	}

	if backoff := os.Getenv("RANGEFETCH_BACKOFF"); backoff != "" {
		if d, err := time.ParseDuration(backoff); err == nil && d > 0 {
			c.BackoffDelay = d
		}
	}

	if logLevel := os.Getenv("RANGEFETCH_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	if quiet := os.Getenv("RANGEFETCH_QUIET"); quiet != "" {
		c.QuietMode = quiet == "true" || quiet == "1"
	}

	if logFile := os.Getenv("RANGEFETCH_LOG_FILE"); logFile != "" {
		c.LogFile = logFile
	}
}

// GetEnvWithDefault returns environment variable value or default.
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ValidateConfig validates the configuration values.
func (c *Config) ValidateConfig() error {
	if c.DefaultParallelism < 1 || c.DefaultParallelism > c.MaxParallelism {
		return fmt.Errorf("invalid default parallelism: %d (must be 1-%d)", c.DefaultParallelism, c.MaxParallelism)
	}

	if c.DefaultMaxRetries < 0 {
		return fmt.Errorf("invalid default max retries: %d (must be >= 0)", c.DefaultMaxRetries)
	}

	if c.BackoffDelay <= 0 {
		return fmt.Errorf("invalid backoff delay: %v (must be > 0)", c.BackoffDelay)
	}

	if c.AggregatorTick < c.AggregatorTickMin || c.AggregatorTick > c.AggregatorTickMax {
		return fmt.Errorf("invalid aggregator tick: %v (must be between %v and %v)",
			c.AggregatorTick, c.AggregatorTickMin, c.AggregatorTickMax)
	}

	if c.HeatmapColumns < 1 {
		return fmt.Errorf("invalid heatmap columns: %d (must be > 0)", c.HeatmapColumns)
	}

	if c.DefaultBufferSize < c.MinBufferSize || c.DefaultBufferSize > c.MaxBufferSize {
		return fmt.Errorf("invalid default buffer size: %d (must be between %d and %d)",
			c.DefaultBufferSize, c.MinBufferSize, c.MaxBufferSize)
	}

	return nil
}
