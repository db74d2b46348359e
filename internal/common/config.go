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
	Queues      QueuesConfig    `toml:"queues"`
	Workers     WorkersConfig   `toml:"workers"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Manager     ManagerConfig   `toml:"manager"`
	Storage     StorageConfig   `toml:"storage"`
	AI          AIConfig        `toml:"ai"`
	Logging     LoggingConfig   `toml:"logging"`
}

// QueuesConfig holds per-queue sizing and retention settings
type QueuesConfig struct {
	Scraping QueueConfig `toml:"scraping"`
	AI       QueueConfig `toml:"ai"`
}

// QueueConfig configures a single job queue instance
type QueueConfig struct {
	MaxSize         int           `toml:"max_size" validate:"gt=0"`        // Pending+active capacity
	RetentionDays   int           `toml:"retention_days" validate:"gte=1"` // Completed/failed history retention
	CleanupInterval time.Duration `toml:"cleanup_interval"`                // How often the internal cleanup timer fires
}

// WorkersConfig holds worker loop tuning for both workers
type WorkersConfig struct {
	Scraping WorkerConfig `toml:"scraping"`
	AI       WorkerConfig `toml:"ai"`
}

// WorkerConfig configures a single worker's polling loop
type WorkerConfig struct {
	Concurrency   int           `toml:"concurrency" validate:"gt=0"`     // Max jobs in flight
	PollInterval  time.Duration `toml:"poll_interval"`                   // Sleep when queue is empty
	BusyInterval  time.Duration `toml:"busy_interval"`                   // Sleep when concurrency is saturated
	JobTimeout    time.Duration `toml:"job_timeout"`                     // Hard per-job deadline
	RetryAttempts int           `toml:"retry_attempts" validate:"gte=0"` // Max retries for retryable failures
	RetryDelay    time.Duration `toml:"retry_delay"`                     // Base linear-backoff delay
}

// SchedulerConfig configures the recurring-source scheduler
type SchedulerConfig struct {
	CheckInterval     time.Duration `toml:"check_interval"`                       // Due-source check cycle
	InitialDelay      time.Duration `toml:"initial_delay"`                        // Delay before the first check after start
	StaleAge          time.Duration `toml:"stale_age"`                            // Pending AI work older than this gets requeued
	StaleRequeueBatch int           `toml:"stale_requeue_batch" validate:"gte=1"` // Max stale jobs requeued per cycle
}

// ScraperConfig configures the scraper orchestration layer
type ScraperConfig struct {
	MaxConcurrentScrapers int                   `toml:"max_concurrent_scrapers" validate:"gt=0"`
	QualityThreshold      float64               `toml:"quality_threshold" validate:"gte=0,lte=1"` // Minimum confidence to keep a record
	EnableQualityFilter   bool                  `toml:"enable_quality_filter"`
	EnableDeduplication   bool                  `toml:"enable_deduplication"`
	PreferredSources      []string              `toml:"preferred_sources"` // Ordering for the priority-based strategy
	SessionRetention      time.Duration         `toml:"session_retention"` // Bulk session GC age (default 24h)
	Sources               []ScraperSourceConfig `toml:"sources,omitempty"` // Built-in capability registrations
}

// ScraperSourceConfig declares one scraping capability to register at
// startup. Type selects the implementation: "http" for server-rendered
// directories, "browser" for client-rendered ones.
type ScraperSourceConfig struct {
	Name              string `toml:"name" validate:"required"`
	Type              string `toml:"type" validate:"oneof=http browser"`
	BaseURL           string `toml:"base_url" validate:"required,url"`
	WaitSelector      string `toml:"wait_selector"` // Browser type only
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// ManagerConfig configures the top-level job manager
type ManagerConfig struct {
	BulkBatchSize      int           `toml:"bulk_batch_size" validate:"gt=0"` // ProcessBulkLeads chunk size
	BulkBatchDelay     time.Duration `toml:"bulk_batch_delay"`                // Delay between bulk batches
	AnalysisChainDelay time.Duration `toml:"analysis_chain_delay"`            // Delay before auto AI analysis after scrape completion
	MetricsInterval    time.Duration `toml:"metrics_interval"`                // Periodic metrics log (0 disables)
}

// StorageConfig configures the persistence layer
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path     string `toml:"path"`      // Database directory path
	InMemory bool   `toml:"in_memory"` // Run without disk persistence (tests)
}

// AIConfig configures the AI provider capability
type AIConfig struct {
	Provider string       `toml:"provider" validate:"oneof=claude gemini"` // Active provider
	Claude   ClaudeConfig `toml:"claude"`
	Gemini   GeminiConfig `toml:"gemini"`
}

// ClaudeConfig holds Anthropic Claude settings
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// GeminiConfig holds Google Gemini settings
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the baseline configuration applied before any file
// or environment overrides.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Queues: QueuesConfig{
			Scraping: QueueConfig{
				MaxSize:         100,
				RetentionDays:   3,
				CleanupInterval: 1 * time.Hour,
			},
			AI: QueueConfig{
				MaxSize:         500,
				RetentionDays:   7,
				CleanupInterval: 1 * time.Hour,
			},
		},
		Workers: WorkersConfig{
			Scraping: WorkerConfig{
				Concurrency:   3,
				PollInterval:  2 * time.Second,
				BusyInterval:  500 * time.Millisecond,
				JobTimeout:    5 * time.Minute,
				RetryAttempts: 2,
				RetryDelay:    5 * time.Second,
			},
			AI: WorkerConfig{
				Concurrency:   5,
				PollInterval:  1 * time.Second,
				BusyInterval:  250 * time.Millisecond,
				JobTimeout:    2 * time.Minute,
				RetryAttempts: 3,
				RetryDelay:    3 * time.Second,
			},
		},
		Scheduler: SchedulerConfig{
			CheckInterval:     1 * time.Minute,
			InitialDelay:      10 * time.Second,
			StaleAge:          1 * time.Hour,
			StaleRequeueBatch: 20,
		},
		Scraper: ScraperConfig{
			MaxConcurrentScrapers: 3,
			QualityThreshold:      0.5,
			EnableQualityFilter:   true,
			EnableDeduplication:   true,
			SessionRetention:      24 * time.Hour,
			Sources: []ScraperSourceConfig{
				{
					Name:              "business-directory",
					Type:              "http",
					BaseURL:           "https://directory.example.com/search",
					RequestsPerMinute: 30,
				},
				{
					Name:              "trade-register",
					Type:              "http",
					BaseURL:           "https://register.example.com/companies",
					RequestsPerMinute: 20,
				},
				{
					Name:              "startup-index",
					Type:              "browser",
					BaseURL:           "https://startups.example.com/browse",
					WaitSelector:      ".listing",
					RequestsPerMinute: 10,
				},
			},
		},
		Manager: ManagerConfig{
			BulkBatchSize:      50,
			BulkBatchDelay:     1 * time.Second,
			AnalysisChainDelay: 2 * time.Second,
			MetricsInterval:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/prospect",
			},
		},
		AI: AIConfig{
			Provider: "claude",
			Claude: ClaudeConfig{
				Model:       "claude-sonnet-4-20250514",
				MaxTokens:   4096,
				Temperature: 0.2,
				Timeout:     "60s",
			},
			Gemini: GeminiConfig{
				Model:       "gemini-2.0-flash",
				MaxTokens:   4096,
				Temperature: 0.2,
				Timeout:     "60s",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig loads configuration in order: defaults -> file(s) -> env.
// Later files override earlier ones. Missing files are an error; an empty
// path list returns defaults plus environment overrides.
func LoadConfig(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against struct validation rules
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies PROSPECT_* environment variable overrides.
// Only the settings operators commonly flip at deploy time are exposed.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PROSPECT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PROSPECT_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("PROSPECT_AI_PROVIDER"); v != "" {
		config.AI.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.AI.Claude.APIKey == "" {
		config.AI.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.AI.Gemini.APIKey == "" {
		config.AI.Gemini.APIKey = v
	}
	if v := os.Getenv("PROSPECT_SCRAPING_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Workers.Scraping.Concurrency = n
		}
	}
	if v := os.Getenv("PROSPECT_AI_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Workers.AI.Concurrency = n
		}
	}
}
