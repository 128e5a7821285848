package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Probe       ProbeConfig     `toml:"probe"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// ScraperConfig controls the external review worker and the supervisor loop
type ScraperConfig struct {
	Command        string        `toml:"command" validate:"required"` // Executable that runs the worker (default: "node")
	Script         string        `toml:"script" validate:"required"`  // Worker script passed as first argument
	WorkDir        string        `toml:"work_dir" validate:"required"`
	BatchPrefix    string        `toml:"batch_prefix" validate:"required"`
	PollInterval   time.Duration `toml:"poll_interval" validate:"gt=0"`   // How often the supervisor polls the drop directory
	MaxRuntime     time.Duration `toml:"max_runtime" validate:"gt=0"`     // Wall-clock budget for a whole task
	ExitGrace      time.Duration `toml:"exit_grace"`                      // Wait after worker exit before the final drain pass
	TerminateGrace time.Duration `toml:"terminate_grace" validate:"gt=0"` // Wait between SIGTERM and SIGKILL
	PageSize       int           `toml:"page_size" validate:"gt=0"`       // Records per batch page, used for batch estimates
}

// ProbeConfig controls the lightweight metadata fetch used to seed new tasks
type ProbeConfig struct {
	UserAgent      string        `toml:"user_agent"`
	RequestTimeout time.Duration `toml:"request_timeout" validate:"gt=0"`
	RateLimit      time.Duration `toml:"rate_limit"` // Minimum time between probe requests
}

// SchedulerConfig controls periodic re-scrapes of known targets
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in recensio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Scraper: ScraperConfig{
			Command:        "node",
			Script:         "./scripts/parse-reviews.js",
			WorkDir:        "./data/scrapes",
			BatchPrefix:    "batch",
			PollInterval:   5 * time.Second,
			MaxRuntime:     1 * time.Hour,
			ExitGrace:      2 * time.Second,
			TerminateGrace: 2 * time.Second,
			PageSize:       50,
		},
		Probe: ProbeConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			RequestTimeout: 10 * time.Second,
			RateLimit:      1 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "0 */6 * * *", // Every six hours
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
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

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against struct-level constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RECENSIO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("RECENSIO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RECENSIO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("RECENSIO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("RECENSIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Scraper configuration
	if command := os.Getenv("RECENSIO_SCRAPER_COMMAND"); command != "" {
		config.Scraper.Command = command
	}
	if script := os.Getenv("RECENSIO_SCRAPER_SCRIPT"); script != "" {
		config.Scraper.Script = script
	}
	if workDir := os.Getenv("RECENSIO_SCRAPER_WORK_DIR"); workDir != "" {
		config.Scraper.WorkDir = workDir
	}
	if pollInterval := os.Getenv("RECENSIO_SCRAPER_POLL_INTERVAL"); pollInterval != "" {
		if d, err := time.ParseDuration(pollInterval); err == nil {
			config.Scraper.PollInterval = d
		}
	}
	if maxRuntime := os.Getenv("RECENSIO_SCRAPER_MAX_RUNTIME"); maxRuntime != "" {
		if d, err := time.ParseDuration(maxRuntime); err == nil {
			config.Scraper.MaxRuntime = d
		}
	}

	// Scheduler configuration
	if schedule := os.Getenv("RECENSIO_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if enabled := os.Getenv("RECENSIO_SCHEDULER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = b
		}
	}
}
