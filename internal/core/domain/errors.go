package domain

import "errors"

// Well-known error kinds. Retry classification and the orchestrator's
// outcome mapping key off these sentinels via errors.Is.
var (
	// ErrCredentialsRejected means the remote system refused the login
	// credentials. Retrying is pointless.
	ErrCredentialsRejected = errors.New("credentials rejected")

	// ErrUserCancelled means the operator declined or aborted the
	// confirmation prompt. It is not a failure; the run degrades to a
	// simulation.
	ErrUserCancelled = errors.New("cancelled by operator")

	// ErrBreakerOpen means the circuit breaker refused the run.
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// Credentials holds the remote system login.
type Credentials struct {
	Username string
	Password string
}
