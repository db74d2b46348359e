package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
)

// ClaudeService implements the AIProvider interface using the Anthropic
// Claude API.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude provider instance
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude provider (set via ANTHROPIC_API_KEY or ai.claude.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	client := anthropic.NewClient(
		option.WithAPIKey(config.APIKey),
	)

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		client:    &client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude provider initialized")

	return service, nil
}

// Name identifies the provider in logs and health output
func (s *ClaudeService) Name() string {
	return "claude"
}

// Close releases the client reference. The Claude client doesn't require
// explicit cleanup.
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

func (s *ClaudeService) AnalyzeLead(ctx context.Context, lead *models.Lead) (*models.LeadAnalysis, error) {
	var result models.LeadAnalysis
	if err := s.completeJSON(ctx, analysisPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("lead analysis failed: %w", err)
	}
	result.AnalyzedAt = time.Now()
	return &result, nil
}

func (s *ClaudeService) ScoreConversionProbability(ctx context.Context, lead *models.Lead) (*models.ConversionScore, error) {
	var result models.ConversionScore
	if err := s.completeJSON(ctx, scoringPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("conversion scoring failed: %w", err)
	}
	result.ScoredAt = time.Now()
	return &result, nil
}

func (s *ClaudeService) GeneratePitch(ctx context.Context, lead *models.Lead) (*models.PitchResult, error) {
	var result models.PitchResult
	if err := s.completeJSON(ctx, pitchPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("pitch generation failed: %w", err)
	}
	result.GeneratedAt = time.Now()
	return &result, nil
}

func (s *ClaudeService) GetCompanyInsights(ctx context.Context, lead *models.Lead) (*models.CompanyInsights, error) {
	var result models.CompanyInsights
	if err := s.completeJSON(ctx, insightsPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("company enrichment failed: %w", err)
	}
	result.EnrichedAt = time.Now()
	return &result, nil
}

func (s *ClaudeService) ClassifyLead(ctx context.Context, lead *models.Lead) (*models.LeadClassification, error) {
	var result models.LeadClassification
	if err := s.completeJSON(ctx, classificationPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("lead classification failed: %w", err)
	}
	result.ClassifiedAt = time.Now()
	return &result, nil
}

func (s *ClaudeService) ValidateLeadData(ctx context.Context, lead *models.Lead) (*models.LeadValidation, error) {
	var result models.LeadValidation
	if err := s.completeJSON(ctx, validationPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("lead validation failed: %w", err)
	}
	result.ValidatedAt = time.Now()
	return &result, nil
}

// completeJSON runs one prompt through the model and decodes the JSON
// response into out.
func (s *ClaudeService) completeJSON(ctx context.Context, prompt string, out any) error {
	response, err := s.generateCompletion(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeModelJSON(response, out)
}

func (s *ClaudeService) generateCompletion(ctx context.Context, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		System: []anthropic.TextBlockParam{
			{Text: analysisSystem},
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	s.logger.Debug().
		Int("prompt_length", len(prompt)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion finished")

	return response.String(), nil
}
