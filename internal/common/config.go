package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Logging     LoggingConfig  `toml:"logging"`
	Storage     StorageConfig  `toml:"storage"`
	Scraper     ScraperConfig  `toml:"scraper"`
	Workers     WorkersConfig  `toml:"workers"`
	Chunking    ChunkingConfig `toml:"chunking"`
	Expand      ExpandConfig   `toml:"expand"`
	Fallback    FallbackConfig `toml:"fallback"`
	RateLimit   RateConfig     `toml:"rate_limit"`
	Output      OutputConfig   `toml:"output"`
	Cleanup     CleanupConfig  `toml:"cleanup"`
	WebSocket   WSConfig       `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ScraperConfig controls the primary (browser-driven) source fetcher.
type ScraperConfig struct {
	DefaultCount      int           `toml:"default_count"`       // Default target when the request omits one
	DiscoverySample   int           `toml:"discovery_sample"`    // Sample size for the expansion discovery fetch
	RequestTimeout    time.Duration `toml:"request_timeout"`     // Wall-clock timeout per fetch
	ScrollDelay       time.Duration `toml:"scroll_delay"`        // Delay between timeline scrolls
	MaxScrollAttempts int           `toml:"max_scroll_attempts"` // Give up scrolling after this many empty rounds
	Headless          bool          `toml:"headless"`
	UserAgent         string        `toml:"user_agent"`
	AuthToken         string        `toml:"auth_token"` // Session cookie injected into the browser
	CSRFToken         string        `toml:"csrf_token"`
}

// WorkersConfig controls the bounded concurrent executor.
type WorkersConfig struct {
	DefaultMode     int           `toml:"default_mode"`     // Worker pool size: 1 (safe), 3 (normal), 5 (aggressive)
	StaggerDelay    time.Duration `toml:"stagger_delay"`    // Delay between initial worker launches
	MaxRetries      int           `toml:"max_retries"`      // Extra attempts per work item on transient failures
	RetryBackoff    time.Duration `toml:"retry_backoff"`    // Initial backoff, doubled per retry
	CheckpointEvery int           `toml:"checkpoint_every"` // Snapshot state every N completed items
	SerializeJobs   bool          `toml:"serialize_jobs"`   // Run whole jobs one at a time (anti-detection)
}

// ChunkingConfig controls date range splitting.
type ChunkingConfig struct {
	LookbackDays    int  `toml:"lookback_days"`     // Synthesized range when no dates are given
	SplitSingleWeek bool `toml:"split_single_week"` // Chunk ranges of 7 days or less anyway
}

// ExpandConfig controls query variation expansion.
type ExpandConfig struct {
	MaxVariations   int `toml:"max_variations"`    // Hard cap on the variation list
	MaxContextWords int `toml:"max_context_words"` // Top frequency-ranked discovery tokens to keep
	MinHashtagCount int `toml:"min_hashtag_count"` // Discovered hashtags below this frequency are dropped
}

// FallbackConfig controls the secondary-source top-up policy.
type FallbackConfig struct {
	PerQueryCap int           `toml:"per_query_cap"` // Upper bound per secondary query
	Buffer      int           `toml:"buffer"`        // Extra records requested beyond the shortfall
	QueryDelay  time.Duration `toml:"query_delay"`   // Pause between secondary queries
}

type RateConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute"` // Global fetch pacing across all jobs
}

type OutputConfig struct {
	Directory  string `toml:"directory"`    // Result artifact directory
	MaxAgeDays int    `toml:"max_age_days"` // Artifacts older than this are cleaned up
}

type CleanupConfig struct {
	Schedule          string `toml:"schedule"`            // Cron schedule for the cleanup pass
	CheckpointMaxDays int    `toml:"checkpoint_max_days"` // Abandoned checkpoints older than this are deleted
}

type WSConfig struct {
	ProgressInterval string `toml:"progress_interval"` // Minimum interval between progress broadcasts per client
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Scraper: ScraperConfig{
			DefaultCount:      100,
			DiscoverySample:   100,
			RequestTimeout:    90 * time.Second,
			ScrollDelay:       2 * time.Second,
			MaxScrollAttempts: 100,
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Workers: WorkersConfig{
			DefaultMode:     3,
			StaggerDelay:    10 * time.Second,
			MaxRetries:      2,
			RetryBackoff:    5 * time.Second,
			CheckpointEvery: 5,
			SerializeJobs:   true,
		},
		Chunking: ChunkingConfig{
			LookbackDays:    60,
			SplitSingleWeek: false,
		},
		Expand: ExpandConfig{
			MaxVariations:   60,
			MaxContextWords: 20,
			MinHashtagCount: 2,
		},
		Fallback: FallbackConfig{
			PerQueryCap: 150,
			Buffer:      25,
			QueryDelay:  3 * time.Second,
		},
		RateLimit: RateConfig{
			RequestsPerMinute: 30,
		},
		Output: OutputConfig{
			Directory:  "./outputs",
			MaxAgeDays: 3,
		},
		Cleanup: CleanupConfig{
			Schedule:          "0 * * * *", // hourly
			CheckpointMaxDays: 7,
		},
		WebSocket: WSConfig{
			ProgressInterval: "1s",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files; later files override
// earlier files. Priority: CLI flags > env vars > last file > ... > defaults.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if badgerPath := os.Getenv("COLLIGO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if outputDir := os.Getenv("COLLIGO_OUTPUT_DIR"); outputDir != "" {
		config.Output.Directory = outputDir
	}

	if workers := os.Getenv("COLLIGO_WORKER_MODE"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil {
			config.Workers.DefaultMode = w
		}
	}

	if token := os.Getenv("COLLIGO_AUTH_TOKEN"); token != "" {
		config.Scraper.AuthToken = token
	}
	if token := os.Getenv("COLLIGO_CSRF_TOKEN"); token != "" {
		config.Scraper.CSRFToken = token
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
