package sources

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `
<html><body>
  <div class="listing">
    <h2 class="name">Jane Smith</h2>
    <span class="company">Acme Plumbing</span>
    <span class="title">Owner</span>
    <a href="mailto:jane@acme.example">email</a>
    <a href="tel:+15550101">call</a>
    <a class="website" href="https://acme.example">site</a>
    <span class="address">1 Main St, Springfield</span>
    <p class="description">Family-run <strong>plumbing</strong> since 1990.</p>
  </div>
  <div class="listing">
    <h2 class="name">Bolt Electrics</h2>
    <span class="phone">555-0102</span>
  </div>
  <div class="listing">
    <p class="description">An orphaned blurb with no identity.</p>
  </div>
</body></html>`

func parseTestDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// TestParseListing tests field extraction from listing cards
func TestParseListing(t *testing.T) {
	doc := parseTestDoc(t, listingHTML)
	records := parseListing(doc, "business-directory", defaultSelectors(), 0)

	// The third card has no name or company and is skipped.
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Jane Smith", first.Name)
	assert.Equal(t, "Acme Plumbing", first.Company)
	assert.Equal(t, "Owner", first.Title)
	assert.Equal(t, "jane@acme.example", first.Email)
	assert.Equal(t, "+15550101", first.Phone)
	assert.Equal(t, "https://acme.example", first.Website)
	assert.Equal(t, "1 Main St, Springfield", first.Address)
	assert.Equal(t, "business-directory", first.Source)
	// The blurb keeps its emphasis as markdown.
	assert.Contains(t, first.Description, "**plumbing**")

	second := records[1]
	assert.Equal(t, "Bolt Electrics", second.Name)
	// Phone falls back to text when there is no tel: link.
	assert.Equal(t, "555-0102", second.Phone)
	assert.Empty(t, second.Email)
}

// TestParseListing_MaxResults tests the result cap
func TestParseListing_MaxResults(t *testing.T) {
	doc := parseTestDoc(t, listingHTML)
	records := parseListing(doc, "business-directory", defaultSelectors(), 1)
	require.Len(t, records, 1)
	assert.Equal(t, "Jane Smith", records[0].Name)
}

// TestRecordConfidence tests the field-weighted confidence estimate
func TestRecordConfidence(t *testing.T) {
	doc := parseTestDoc(t, listingHTML)
	records := parseListing(doc, "business-directory", defaultSelectors(), 0)
	require.Len(t, records, 2)

	// Full contact card: 0.3 + name 0.15 + email 0.25 + phone 0.15 + company 0.1 + website 0.05
	assert.InDelta(t, 1.0, records[0].Confidence, 1e-9)
	// Name and phone only: 0.3 + 0.15 + 0.15
	assert.InDelta(t, 0.6, records[1].Confidence, 1e-9)
}

// TestUsageWindow tests the sliding one-minute request window
func TestUsageWindow(t *testing.T) {
	var w usageWindow
	now := time.Now()

	w.record(now.Add(-90 * time.Second))
	w.record(now.Add(-30 * time.Second))
	w.record(now)

	// The 90-second-old entry falls outside the window.
	assert.Equal(t, 2, w.count(now))
	assert.Equal(t, 0, w.count(now.Add(2*time.Minute)))
}
