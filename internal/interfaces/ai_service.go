package interfaces

import (
	"context"

	"github.com/ternarybob/prospect/internal/models"
)

// AIProvider is the pluggable AI-enrichment capability. Each method maps
// to one AI-processing operation; results are consumed verbatim by the
// corresponding worker branch.
type AIProvider interface {
	AnalyzeLead(ctx context.Context, lead *models.Lead) (*models.LeadAnalysis, error)
	ScoreConversionProbability(ctx context.Context, lead *models.Lead) (*models.ConversionScore, error)
	GeneratePitch(ctx context.Context, lead *models.Lead) (*models.PitchResult, error)
	GetCompanyInsights(ctx context.Context, lead *models.Lead) (*models.CompanyInsights, error)
	ClassifyLead(ctx context.Context, lead *models.Lead) (*models.LeadClassification, error)
	ValidateLeadData(ctx context.Context, lead *models.Lead) (*models.LeadValidation, error)
	// Name identifies the underlying provider for logs and health output
	Name() string
	Close() error
}
