// Package classify scores a candidate post's sales relevance with an
// external language-understanding service and parses the structured
// verdict. Malformed or missing output never raises: the caller always
// receives a verdict, degraded if necessary.
package classify

import (
	"encoding/json"
	"strings"
)

// AuthorInsights is the fixed-shape author read inside a verdict.
type AuthorInsights struct {
	LikelyRole   string `json:"likely_role"`
	CompanyStage string `json:"company_stage"` // startup | smb | enterprise | individual | unknown
	TechSavvy    string `json:"tech_savvy"`    // low | medium | high
	BuyingIntent string `json:"buying_intent"` // low | medium | high
	Personality  string `json:"personality"`
}

// Verdict is the classifier's structured output for one post.
type Verdict struct {
	RelevanceScore     int            `json:"relevance_score"`
	PainPoints         []string       `json:"pain_points"`
	AuthorInsights     AuthorInsights `json:"author_insights"`
	OpportunitySummary string         `json:"opportunity_summary"`
	OutreachMessage    string         `json:"outreach_message"`
}

// DegradedVerdict is substituted when the raw response is not valid JSON
// or the service call failed. The raw text is surfaced as the opportunity
// summary so the operator still sees something useful.
func DegradedVerdict(raw string) *Verdict {
	summary := Truncate(strings.TrimSpace(raw), 300)
	return &Verdict{
		RelevanceScore: 5,
		PainPoints:     []string{"Unable to parse"},
		AuthorInsights: AuthorInsights{
			LikelyRole:   "unknown",
			CompanyStage: "unknown",
			TechSavvy:    "unknown",
			BuyingIntent: "medium",
			Personality:  "unknown",
		},
		OpportunitySummary: summary,
		OutreachMessage:    "Hi! I saw your post and thought I could help...",
	}
}

// ParseVerdict decodes a raw model response into a Verdict. Markup fencing
// is stripped first; anything that still fails strict JSON decoding yields
// the degraded verdict. Never returns an error.
func ParseVerdict(raw string) *Verdict {
	cleaned := cleanJSON(raw)
	var v Verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return DegradedVerdict(raw)
	}
	if v.RelevanceScore < 0 {
		v.RelevanceScore = 0
	}
	if v.RelevanceScore > 10 {
		v.RelevanceScore = 10
	}
	return &v
}

// cleanJSON strips markdown code fences some models wrap around JSON.
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
