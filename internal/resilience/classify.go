package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/klhsieh/punchd/internal/core/domain"
)

// Category determines how an error is handled by the retry policy.
type Category int

const (
	// CategoryTransient errors (network, timeouts, flaky driver state) are
	// retried and count toward the circuit breaker.
	CategoryTransient Category = iota
	// CategoryTerminal errors (rejected credentials, malformed input,
	// operator cancellation) are never retried.
	CategoryTerminal
)

// terminalKeywords mark errors that retrying cannot fix.
var terminalKeywords = []string{
	"invalid credential",
	"credentials rejected",
	"login rejected",
	"malformed",
	"invalid argument",
}

// Classify determines the retry category for an error. Sentinel errors are
// checked first; unknown errors fall back to keyword matching with retry as
// the default, since the remote surface mostly fails in transient ways.
func Classify(err error) Category {
	if err == nil {
		return CategoryTransient
	}

	if errors.Is(err, domain.ErrCredentialsRejected) ||
		errors.Is(err, domain.ErrUserCancelled) ||
		errors.Is(err, context.Canceled) {
		return CategoryTerminal
	}

	s := strings.ToLower(err.Error())
	for _, kw := range terminalKeywords {
		if strings.Contains(s, kw) {
			return CategoryTerminal
		}
	}

	return CategoryTransient
}
