package sources

import (
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/prospect/internal/models"
)

// listingSelectors maps the structural pieces of a directory listing page
// to CSS selectors. Sources built on different directory layouts override
// the defaults.
type listingSelectors struct {
	Card    string
	Name    string
	Company string
	Title   string
	Email   string
	Phone   string
	Website string
	Address string
	Blurb   string
}

func defaultSelectors() listingSelectors {
	return listingSelectors{
		Card:    ".listing, .result, article.entry",
		Name:    ".name, h2, h3",
		Company: ".company, .org",
		Title:   ".title, .role",
		Email:   "a[href^='mailto:']",
		Phone:   "a[href^='tel:'], .phone",
		Website: "a.website, a[rel='external']",
		Address: ".address, .location",
		Blurb:   ".description, .summary, p",
	}
}

// parseListing extracts records from a directory listing document. The
// blurb is converted to markdown so downstream enrichment sees structure
// (links, emphasis) instead of flattened text.
func parseListing(doc *goquery.Document, source string, sel listingSelectors, maxResults int) []models.ScrapedRecord {
	converter := md.NewConverter("", true, nil)
	var records []models.ScrapedRecord

	doc.Find(sel.Card).EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if maxResults > 0 && len(records) >= maxResults {
			return false
		}

		record := models.ScrapedRecord{
			Source:    source,
			ScrapedAt: time.Now(),
		}

		record.Name = cleanText(card.Find(sel.Name).First().Text())
		record.Company = cleanText(card.Find(sel.Company).First().Text())
		record.Title = cleanText(card.Find(sel.Title).First().Text())
		record.Address = cleanText(card.Find(sel.Address).First().Text())

		if href, ok := card.Find(sel.Email).First().Attr("href"); ok {
			record.Email = strings.TrimPrefix(href, "mailto:")
		}
		if href, ok := card.Find(sel.Phone).First().Attr("href"); ok {
			record.Phone = strings.TrimPrefix(href, "tel:")
		} else {
			record.Phone = cleanText(card.Find(sel.Phone).First().Text())
		}
		if href, ok := card.Find(sel.Website).First().Attr("href"); ok {
			record.Website = href
		}

		if blurb := card.Find(sel.Blurb).First(); blurb.Length() > 0 {
			if html, err := goquery.OuterHtml(blurb); err == nil {
				if markdown, err := converter.ConvertString(html); err == nil {
					record.Description = strings.TrimSpace(markdown)
				}
			}
		}

		if record.Name == "" && record.Company == "" {
			return true // Card carried nothing identifiable
		}

		record.Confidence = recordConfidence(record)
		records = append(records, record)
		return true
	})

	return records
}

// recordConfidence estimates how much of the record's identity the page
// actually yielded. Contact channels weigh more than descriptive fields.
func recordConfidence(r models.ScrapedRecord) float64 {
	score := 0.3
	if r.Name != "" {
		score += 0.15
	}
	if r.Email != "" {
		score += 0.25
	}
	if r.Phone != "" {
		score += 0.15
	}
	if r.Company != "" {
		score += 0.1
	}
	if r.Website != "" {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// usageWindow tracks request timestamps over a sliding one-minute window
// for rate-limit reporting.
type usageWindow struct {
	mu    sync.Mutex
	times []time.Time
}

func (w *usageWindow) record(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.times = append(w.times, now)
	w.prune(now)
}

func (w *usageWindow) count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(now)
	return len(w.times)
}

func (w *usageWindow) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	kept := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.times = kept
}
