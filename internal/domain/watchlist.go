package domain

import "time"

// WatchlistQueryResult is one source's answer for a profile. Ephemeral;
// only the aggregator consumes it.
type WatchlistQueryResult struct {
	Source     string    `json:"source"`
	Matched    bool      `json:"matched"`
	Confidence float64   `json:"confidence"` // 0-1
	Err        error     `json:"-"`
	QueriedAt  time.Time `json:"queried_at"`
}

// WatchlistVerdict is the merged outcome across all configured sources.
type WatchlistVerdict struct {
	Sanctioned bool    `json:"sanctioned"`
	Confidence float64 `json:"confidence"` // max confidence among matched, succeeded sources

	// Degraded is set when at least one source errored or timed out.
	// InsufficientData is set when zero sources succeeded; the verdict is
	// then confidence 0 and must be treated as best-effort.
	Degraded         bool     `json:"degraded"`
	InsufficientData bool     `json:"insufficient_data"`
	SourcesQueried   int      `json:"sources_queried"`
	SourcesSucceeded int      `json:"sources_succeeded"`
	FailedSources    []string `json:"failed_sources,omitempty"`
}
