package domain

import "time"

// RetryType distinguishes what needs to be redone for a queued document.
type RetryType string

const (
	// RetryTypeAnalyzeFailed means the analysis call itself failed; the whole
	// document must go through Analyze again.
	RetryTypeAnalyzeFailed RetryType = "analyze_failed"

	// RetryTypeWriteFailed means analysis succeeded but persisting the result
	// (or the source status update) failed.
	RetryTypeWriteFailed RetryType = "write_failed"
)

// RetryEntry is one failed document awaiting reconciliation. The queue holds
// at most one live entry per document id; a repeated failure updates the
// existing entry in place.
type RetryEntry struct {
	Document    *SourceDocument `json:"document"`
	Error       string          `json:"error"`
	RetryType   RetryType       `json:"retry_type"`
	Attempts    int             `json:"attempts"`
	LastAttempt time.Time       `json:"last_attempt"`
}
