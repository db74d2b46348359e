package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
	"google.golang.org/genai"
)

// GeminiService implements the AIProvider interface using the Google
// Gemini API.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a new Gemini provider instance
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini provider (set via GEMINI_API_KEY or ai.gemini.api_key in config)")
	}

	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Msg("Gemini provider initialized")

	return service, nil
}

// Name identifies the provider in logs and health output
func (s *GeminiService) Name() string {
	return "gemini"
}

// Close clears the client reference. The genai client doesn't require
// explicit cleanup.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

func (s *GeminiService) AnalyzeLead(ctx context.Context, lead *models.Lead) (*models.LeadAnalysis, error) {
	var result models.LeadAnalysis
	if err := s.completeJSON(ctx, analysisPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("lead analysis failed: %w", err)
	}
	result.AnalyzedAt = time.Now()
	return &result, nil
}

func (s *GeminiService) ScoreConversionProbability(ctx context.Context, lead *models.Lead) (*models.ConversionScore, error) {
	var result models.ConversionScore
	if err := s.completeJSON(ctx, scoringPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("conversion scoring failed: %w", err)
	}
	result.ScoredAt = time.Now()
	return &result, nil
}

func (s *GeminiService) GeneratePitch(ctx context.Context, lead *models.Lead) (*models.PitchResult, error) {
	var result models.PitchResult
	if err := s.completeJSON(ctx, pitchPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("pitch generation failed: %w", err)
	}
	result.GeneratedAt = time.Now()
	return &result, nil
}

func (s *GeminiService) GetCompanyInsights(ctx context.Context, lead *models.Lead) (*models.CompanyInsights, error) {
	var result models.CompanyInsights
	if err := s.completeJSON(ctx, insightsPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("company enrichment failed: %w", err)
	}
	result.EnrichedAt = time.Now()
	return &result, nil
}

func (s *GeminiService) ClassifyLead(ctx context.Context, lead *models.Lead) (*models.LeadClassification, error) {
	var result models.LeadClassification
	if err := s.completeJSON(ctx, classificationPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("lead classification failed: %w", err)
	}
	result.ClassifiedAt = time.Now()
	return &result, nil
}

func (s *GeminiService) ValidateLeadData(ctx context.Context, lead *models.Lead) (*models.LeadValidation, error) {
	var result models.LeadValidation
	if err := s.completeJSON(ctx, validationPrompt(lead), &result); err != nil {
		return nil, fmt.Errorf("lead validation failed: %w", err)
	}
	result.ValidatedAt = time.Now()
	return &result, nil
}

func (s *GeminiService) completeJSON(ctx context.Context, prompt string, out any) error {
	response, err := s.generateCompletion(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeModelJSON(response, out)
}

func (s *GeminiService) generateCompletion(ctx context.Context, prompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysisSystem, genai.RoleUser),
	}
	if s.config.Temperature > 0 {
		config.Temperature = genai.Ptr(s.config.Temperature)
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(prompt)},
		},
	}

	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Gemini API")
	}

	s.logger.Debug().
		Int("prompt_length", len(prompt)).
		Int("response_length", response.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini completion finished")

	return response.String(), nil
}
