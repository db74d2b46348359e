package workers

import (
	"time"

	"github.com/ternarybob/prospect/internal/common"
	"github.com/ternarybob/prospect/internal/models"
	"github.com/ternarybob/prospect/internal/scraper"
)

// leadFromRecord builds a persistable lead from a scraped record, tagging
// it with the computed data-quality score and enrichment metadata.
func leadFromRecord(record models.ScrapedRecord) *models.Lead {
	now := time.Now()
	return &models.Lead{
		ID:           common.NewLeadID(),
		Name:         record.Name,
		Email:        scraper.NormalizeEmail(record.Email),
		Phone:        record.Phone,
		Company:      record.Company,
		Title:        record.Title,
		Website:      record.Website,
		Address:      record.Address,
		Notes:        record.Description,
		Source:       record.Source,
		QualityScore: scraper.QualityScore(record),
		Tags:         enrichmentTags(record),
		Metadata:     record.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// enrichmentTags derives coarse tags used by downstream filtering
func enrichmentTags(record models.ScrapedRecord) []string {
	var tags []string
	if record.Email != "" {
		tags = append(tags, "has-email")
	}
	if record.Phone != "" {
		tags = append(tags, "has-phone")
	}
	if record.Website != "" {
		tags = append(tags, "has-website")
	}
	if scraper.QualityScore(record) >= 0.8 {
		tags = append(tags, "high-quality")
	}
	return tags
}
