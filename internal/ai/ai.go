package ai

import "context"

// MatchContext carries everything a summarizer may mention about a
// generated match. Scores are final values, already persisted; a
// summarizer must never change them.
type MatchContext struct {
	UserAlias          string   `json:"user_alias"`
	JobTitle           string   `json:"job_title"`
	Company            string   `json:"company"`
	MatchScore         int      `json:"match_score"`
	CompatibilityScore int      `json:"compatibility_score"`
	LongevityScore     int      `json:"longevity_score"`
	PredictedMonths    int      `json:"predicted_months"`
	Reasons            []string `json:"reasons"`
	Factors            []string `json:"factors"`
}

// Summarizer produces a short human-readable narrative for a match. It
// is strictly opportunistic: a failing or absent summarizer leaves the
// match with its canonical reasons only.
type Summarizer interface {
	Summarize(ctx context.Context, match *MatchContext) (string, error)
}
