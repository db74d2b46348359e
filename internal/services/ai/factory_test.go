package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
)

// TestNewProvider tests provider selection and API-key requirements
func TestNewProvider(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("claude", func(t *testing.T) {
		provider, err := NewProvider(&common.AIConfig{
			Provider: "claude",
			Claude:   common.ClaudeConfig{APIKey: "test-key", Timeout: "30s"},
		}, logger)
		require.NoError(t, err)
		assert.Equal(t, "claude", provider.Name())
		assert.NoError(t, provider.Close())
	})

	t.Run("claude without api key", func(t *testing.T) {
		_, err := NewProvider(&common.AIConfig{Provider: "claude"}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewProvider(&common.AIConfig{Provider: "oracle"}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown AI provider")
	})
}
