package fetcher

import "leetfetch/lib/platforms/leetcode"

// FetchResult is the single document a run produces. It is assembled
// once and handed off for serialization, never mutated afterwards.
type FetchResult struct {
	Username     string                `json:"username"`
	ProfileStats leetcode.ProfileStats `json:"profile_stats"`
	Problems     []leetcode.Problem    `json:"problems"`
}
