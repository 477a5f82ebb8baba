package report

import (
	"errors"
	"fmt"
)

// Error categories that no amount of retrying will fix. Providers map their
// wire-level failures onto these so the retry policy can short-circuit.
var (
	ErrUnauthorized     = errors.New("invalid credentials")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBadRequest       = errors.New("malformed request")

	// ErrBackendDisabled means an earlier non-retryable failure switched the
	// backend off for the rest of the run.
	ErrBackendDisabled = errors.New("backend disabled for this run")
)

// ModelError means the AI backend failed after fallback and retries, or is
// misconfigured.
type ModelError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// IsNonRetryable reports whether err belongs to a category that should
// propagate immediately instead of being retried.
func IsNonRetryable(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrBackendDisabled)
}
