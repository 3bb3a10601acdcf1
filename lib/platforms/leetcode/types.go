// Package leetcode implements the two ways of pulling a user's
// problem-solving history: a structured-query client speaking the site's
// graphql/rest endpoints, and a markup-scraping client that re-derives
// the same entities from rendered pages when the structured endpoints
// misbehave.
package leetcode

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("platforms/leetcode")

const DefaultBaseUrl = "https://leetcode.com"

type ProfileStats struct {
	TotalSolved int `json:"total_solved"`
	Easy        int `json:"easy"`
	Medium      int `json:"medium"`
	Hard        int `json:"hard"`
}

// Consistent reports whether the per-difficulty buckets add up to the
// total. Upstream data occasionally disagrees with itself; callers log
// the mismatch but never correct the numbers.
func (s ProfileStats) Consistent() bool {
	return s.Easy+s.Medium+s.Hard == s.TotalSolved
}

type Submission struct {
	Status    string  `json:"status"`
	Code      string  `json:"code"`
	Timestamp string  `json:"timestamp"`
	Runtime   *string `json:"runtime"`
	Memory    *string `json:"memory"`
	Language  string  `json:"language"`
}

type Problem struct {
	Title       string       `json:"title"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Difficulty  string       `json:"difficulty"`
	Tags        []string     `json:"tags"`
	Submissions []Submission `json:"submissions"`
}

// optionalMetric maps the upstream's "N/A" placeholder (or an empty
// cell) to a null value.
func optionalMetric(raw string) *string {
	if raw == "" || raw == "N/A" {
		return nil
	}
	return &raw
}
