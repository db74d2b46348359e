package ai

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/interfaces"
)

// NewProvider builds the configured AI provider
func NewProvider(config *common.AIConfig, logger arbor.ILogger) (interfaces.AIProvider, error) {
	switch config.Provider {
	case "claude":
		return NewClaudeService(&config.Claude, logger)
	case "gemini":
		return NewGeminiService(&config.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q (supported: claude, gemini)", config.Provider)
	}
}
