// Package errs defines the errors surfaced by the catalog, search and routing services.
// Callers classify them with errors.Is and errors.As.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/darp-registry/darp/pkg/types"
)

var (
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks a request rejected before any work was done.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConcurrentUpdate is returned when a server changed while its update was in progress.
	// Retrying the update is safe.
	ErrConcurrentUpdate = errors.New("server was modified concurrently, retry the update")

	// ErrTurnLimitExceeded is matched by every TurnLimitError.
	ErrTurnLimitExceeded = errors.New("exceeded maximum turns")
)

// NotFoundError is returned when a referenced server does not exist.
type NotFoundError struct {
	ID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("server %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError is returned when a name or url is already taken.
// Servers holds every colliding record, not just the first one.
type ConflictError struct {
	Servers []types.Server
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Servers))
	for _, s := range e.Servers {
		names = append(names, fmt.Sprintf("%s (%s)", s.Name, s.URL))
	}
	if len(names) == 0 {
		return "server already exists"
	}
	return "server already exists: " + strings.Join(names, ", ")
}

// DiscoveryError is returned when the tools of a server could not be listed.
type DiscoveryError struct {
	URL string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("failed to discover tools at %s: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// DispatchError is returned when a single tool invocation failed.
// The routing engine records it in the transcript instead of aborting.
type DispatchError struct {
	Server string
	Tool   string
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to call tool %s on %s: %v", e.Tool, e.Server, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ProviderErrorKind distinguishes the ways a text-generation request can fail.
type ProviderErrorKind string

const (
	// ProviderErrRequest is a request-level failure (4xx, bad credentials, bad payload).
	ProviderErrRequest ProviderErrorKind = "request"
	// ProviderErrUpstream is a 5xx answer from the provider.
	ProviderErrUpstream ProviderErrorKind = "upstream"
	// ProviderErrGeneral covers transport errors and anything unclassified.
	ProviderErrGeneral ProviderErrorKind = "general"
	// ProviderErrTimeout is returned when the request exceeded its deadline.
	ProviderErrTimeout ProviderErrorKind = "timeout"
	// ProviderErrMalformed is returned when the answer could not be interpreted.
	ProviderErrMalformed ProviderErrorKind = "malformed"
)

// ProviderError wraps a failure of the text-generation provider.
type ProviderError struct {
	Kind       ProviderErrorKind
	StatusCode int
	Code       string
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "llm provider %s error", e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// TurnLimitError is returned when the routing loop ran out of turns.
// Transcript holds the conversation up to the point it was cut off.
type TurnLimitError struct {
	MaxTurns   int
	Transcript []types.Message
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("routing %s (%d)", ErrTurnLimitExceeded, e.MaxTurns)
}

func (e *TurnLimitError) Is(target error) bool {
	return target == ErrTurnLimitExceeded
}

// InvalidInput wraps msg so that it matches ErrInvalidInput.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
