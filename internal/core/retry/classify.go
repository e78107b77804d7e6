package retry

import "strings"

// Class is the failure category driving retry policy.
type Class string

const (
	// ClassTransient covers network and availability failures. Retried with
	// backoff. Also the default for errors that match no known pattern, so a
	// novel failure mode is never silently dropped.
	ClassTransient Class = "transient"

	// ClassResource covers rate limits, quotas and overload. Retried with the
	// same backoff policy as transient.
	ClassResource Class = "resource"

	// ClassPermanent covers auth, validation and not-found failures. Never
	// retried.
	ClassPermanent Class = "permanent"
)

var (
	transientPatterns = []string{
		"timeout", "timed out", "connection", "network", "refused",
		"unavailable", "reset by peer", "temporary", "broken pipe", "eof",
	}
	resourcePatterns = []string{
		"rate limit", "too many requests", "429", "quota", "capacity",
		"overloaded", "throttled",
	}
	permanentPatterns = []string{
		"authentication", "unauthorized", "forbidden", "auth", "permission",
		"bad request", "invalid", "not found", "syntax error", "malformed",
	}
)

// Classify maps a failure into a Class by matching the error text against
// known patterns. Pure and deterministic; no I/O. Resource and permanent
// patterns are checked after transient so that e.g. "connection refused by
// proxy (403)" stays retryable.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())

	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return ClassTransient
		}
	}
	for _, p := range resourcePatterns {
		if strings.Contains(msg, p) {
			return ClassResource
		}
	}
	for _, p := range permanentPatterns {
		if strings.Contains(msg, p) {
			return ClassPermanent
		}
	}

	// Unknown failures are assumed retryable.
	return ClassTransient
}
