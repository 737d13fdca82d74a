/*
errors.go - Centralized error taxonomy for remote call boundaries

PURPOSE:
  Every failure crossing a service boundary is classified into one of four
  kinds, so callers drive control flow with errors.Is instead of inspecting
  messages:

    AuthenticationFailed - credentials rejected; fatal for the invocation,
                           abort before any mutating call
    NotFound             - one target unresolvable; skip it, continue batch
    TransientNetwork     - timeout/connection failure; abort current step,
                           no retry in the core
    Validation           - bad input; rejected before any remote call

USAGE:
  Service clients wrap their failures:

    return &ServiceError{Service: "tracker", Op: "search", Status: 401,
        Err: ErrAuthenticationFailed}

  Callers branch on kind:

    if worklog.IsAuthentication(err) { return err } // abort run

SEE ALSO:
  - jira/client.go, tempo/client.go: produce these errors
  - timesheet/reconcile.go: consumes them for step control flow
*/
package worklog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAuthenticationFailed is returned when a remote service rejects
	// credentials. Fatal for the current invocation.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotFound is returned when a single referenced target cannot be
	// resolved. The batch continues without it.
	ErrNotFound = errors.New("not found")

	// ErrTransientNetwork is returned for timeouts and connection failures.
	// The current step is abandoned; retry is the host's concern.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrValidation is returned for malformed input, rejected before any
	// remote call is attempted.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ServiceError records which remote call failed and classifies it.
type ServiceError struct {
	Service string // "tracker", "ledger", "calendar"
	Op      string // e.g. "search", "create-entry"
	Status  int    // HTTP status when known, else 0
	Err     error  // sentinel kind or underlying cause
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Service, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ValidationError reports which input failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsAuthentication reports a credentials rejection.
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthenticationFailed) }

// IsNotFound reports a missing single target.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTransient reports a timeout or connection failure.
func IsTransient(err error) bool { return errors.Is(err, ErrTransientNetwork) }

// IsValidation reports rejected input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// ClassifyStatus maps an HTTP response status to a sentinel kind. Statuses
// outside the taxonomy return nil; callers keep their own error for those.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthenticationFailed
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout ||
		status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return ErrTransientNetwork
	default:
		return nil
	}
}

// ClassifyTransportError maps transport-level failures (timeouts, refused
// connections, canceled contexts) to ErrTransientNetwork, else nil.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTransientNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransientNetwork
	}
	return nil
}
