package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/prospect/internal/models"
)

// leadContext renders the lead's known fields as prompt context. Empty
// fields are omitted so the model is not tempted to echo blanks back.
func leadContext(lead *models.Lead) string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	write("Name", lead.Name)
	write("Company", lead.Company)
	write("Title", lead.Title)
	write("Email", lead.Email)
	write("Phone", lead.Phone)
	write("Website", lead.Website)
	write("Address", lead.Address)
	write("Source", lead.Source)
	write("Notes", lead.Notes)
	if len(lead.Tags) > 0 {
		write("Tags", strings.Join(lead.Tags, ", "))
	}
	return b.String()
}

const analysisSystem = "You are a B2B sales analyst. Respond only with a JSON object, no prose before or after."

func analysisPrompt(lead *models.Lead) string {
	return fmt.Sprintf(`Analyze the following sales lead and respond with JSON matching this shape:
{"summary": string, "strengths": [string], "risks": [string], "fit_score": number between 0 and 1}

Lead:
%s`, leadContext(lead))
}

func scoringPrompt(lead *models.Lead) string {
	return fmt.Sprintf(`Estimate the probability that the following lead converts to a paying customer. Respond with JSON matching this shape:
{"probability": number between 0 and 1, "reasoning": string}

Lead:
%s`, leadContext(lead))
}

func pitchPrompt(lead *models.Lead) string {
	return fmt.Sprintf(`Write a short, personalized cold-outreach email for the following lead. Respond with JSON matching this shape:
{"subject": string, "body": string}

Lead:
%s`, leadContext(lead))
}

func insightsPrompt(lead *models.Lead) string {
	return fmt.Sprintf(`Summarize what is publicly knowable about this lead's company. Respond with JSON matching this shape:
{"industry": string, "size": string, "summary": string, "signals": [string]}

Lead:
%s`, leadContext(lead))
}

func classificationPrompt(lead *models.Lead) string {
	return fmt.Sprintf(`Classify the following lead. Segment is one of "enterprise", "mid-market", "smb", "individual". Tier is one of "hot", "warm", "cold". Respond with JSON matching this shape:
{"segment": string, "tier": string, "reasoning": string}

Lead:
%s`, leadContext(lead))
}

func validationPrompt(lead *models.Lead) string {
	return fmt.Sprintf(`Check the following lead record for internal consistency and plausibility (email format matching the company domain, title matching the company, obviously fake entries). Respond with JSON matching this shape:
{"valid": bool, "issues": [string], "confidence": number between 0 and 1}

Lead:
%s`, leadContext(lead))
}

// decodeModelJSON parses a model response into out, tolerating markdown
// code fences around the JSON body.
func decodeModelJSON(response string, out any) error {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return nil
}
