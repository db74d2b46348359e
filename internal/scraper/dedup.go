package scraper

import (
	"strings"

	"github.com/ternarybob/prospect/internal/models"
)

// DedupKey builds the composite deduplication key of a scraped record:
// normalized name + normalized email + normalized phone digits.
func DedupKey(record models.ScrapedRecord) string {
	return strings.Join([]string{
		NormalizeName(record.Name),
		NormalizeEmail(record.Email),
		NormalizePhoneDigits(record.Phone),
	}, "|")
}

// Deduplicate removes records sharing a composite key, keeping the
// first-seen occurrence. Returns the surviving records and the duplicate count.
func Deduplicate(records []models.ScrapedRecord) ([]models.ScrapedRecord, int) {
	seen := make(map[string]struct{}, len(records))
	kept := make([]models.ScrapedRecord, 0, len(records))
	duplicates := 0

	for _, record := range records {
		key := DedupKey(record)
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, record)
	}
	return kept, duplicates
}
