package scraper

import (
	"strings"
	"unicode"

	"github.com/ternarybob/prospect/internal/models"
)

// NormalizeName lowercases a name and collapses internal whitespace
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, " ")
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhoneDigits strips everything but digits from a phone number
func NormalizePhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QualityScore derives a 0-1 data-quality score for a scraped record from
// its self-reported confidence plus field completeness.
func QualityScore(record models.ScrapedRecord) float64 {
	score := record.Confidence * 0.5

	if record.Name != "" {
		score += 0.1
	}
	if record.Email != "" {
		score += 0.15
	}
	if record.Phone != "" {
		score += 0.1
	}
	if record.Company != "" {
		score += 0.05
	}
	if record.Website != "" {
		score += 0.05
	}
	if record.Title != "" || record.Address != "" {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// FilterQuality drops records scoring below the threshold. Returns the
// surviving records and the count of dropped ones.
func FilterQuality(records []models.ScrapedRecord, threshold float64) ([]models.ScrapedRecord, int) {
	kept := make([]models.ScrapedRecord, 0, len(records))
	dropped := 0
	for _, record := range records {
		if QualityScore(record) >= threshold {
			kept = append(kept, record)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
