package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig tests the baseline values applied before overrides
func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, 100, config.Queues.Scraping.MaxSize)
	assert.Equal(t, 500, config.Queues.AI.MaxSize)
	assert.Equal(t, 3, config.Workers.Scraping.Concurrency)
	assert.Equal(t, 5, config.Workers.AI.Concurrency)
	assert.Equal(t, time.Minute, config.Scheduler.CheckInterval)
	assert.Equal(t, 0.5, config.Scraper.QualityThreshold)
	assert.True(t, config.Scraper.EnableQualityFilter)
	assert.Equal(t, 50, config.Manager.BulkBatchSize)
	assert.Equal(t, "claude", config.AI.Provider)
	assert.Len(t, config.Scraper.Sources, 3)

	require.NoError(t, config.Validate())
}

// TestLoadConfig_FileOverride tests that TOML settings override defaults
// while untouched sections keep their default values
func TestLoadConfig_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prospect.toml")
	content := `
environment = "production"

[queues.scraping]
max_size = 250

[workers.ai]
concurrency = 8

[ai]
provider = "gemini"

[ai.gemini]
api_key = "test-key"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, 250, config.Queues.Scraping.MaxSize)
	assert.Equal(t, 8, config.Workers.AI.Concurrency)
	assert.Equal(t, "gemini", config.AI.Provider)
	assert.Equal(t, "test-key", config.AI.Gemini.APIKey)

	// Untouched sections keep defaults.
	assert.Equal(t, 3, config.Queues.Scraping.RetentionDays)
	assert.Equal(t, 3, config.Workers.Scraping.Concurrency)
	assert.Equal(t, 50, config.Manager.BulkBatchSize)
}

// TestLoadConfig_MissingFile tests that a missing config file is an error
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// TestLoadConfig_InvalidTOML tests that a malformed file is an error
func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("queues = not toml"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// TestLoadConfig_EnvOverrides tests PROSPECT_* environment overrides
func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PROSPECT_LOG_LEVEL", "debug")
	t.Setenv("PROSPECT_BADGER_PATH", "/tmp/prospect-test")
	t.Setenv("PROSPECT_AI_CONCURRENCY", "12")
	t.Setenv("PROSPECT_SCRAPING_CONCURRENCY", "not-a-number")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "/tmp/prospect-test", config.Storage.Badger.Path)
	assert.Equal(t, 12, config.Workers.AI.Concurrency)
	// Unparseable numeric overrides are ignored.
	assert.Equal(t, 3, config.Workers.Scraping.Concurrency)
}

// TestLoadConfig_APIKeyEnvFallback tests that provider key env vars only
// fill in keys the file left empty
func TestLoadConfig_APIKeyEnvFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "env-key", config.AI.Claude.APIKey)

	path := filepath.Join(t.TempDir(), "prospect.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ai.claude]\napi_key = \"file-key\"\n"), 0o644))

	config, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", config.AI.Claude.APIKey)
}

// TestConfig_Validate tests struct validation failures
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero queue size",
			mutate: func(c *Config) { c.Queues.Scraping.MaxSize = 0 },
		},
		{
			name:   "negative retry attempts",
			mutate: func(c *Config) { c.Workers.AI.RetryAttempts = -1 },
		},
		{
			name:   "quality threshold above one",
			mutate: func(c *Config) { c.Scraper.QualityThreshold = 1.5 },
		},
		{
			name:   "unknown AI provider",
			mutate: func(c *Config) { c.AI.Provider = "oracle" },
		},
		{
			name:   "source with invalid type",
			mutate: func(c *Config) { c.Scraper.Sources[0].Type = "ftp" },
		},
		{
			name:   "source with invalid url",
			mutate: func(c *Config) { c.Scraper.Sources[0].BaseURL = "not a url" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			assert.Error(t, config.Validate())
		})
	}
}
