package browse

import (
	"errors"
	"fmt"
)

// Registry-level sentinel errors.
var (
	// ErrSessionNotFound is returned for commands against unknown sessions.
	ErrSessionNotFound = errors.New("browsing session not found")

	// ErrNotAwaitingApproval is returned when approve is sent to a session
	// that is not gated.
	ErrNotAwaitingApproval = errors.New("session is not awaiting approval")

	// ErrSessionTerminal is returned when a command targets a session that
	// has already reached a terminal state.
	ErrSessionTerminal = errors.New("session already reached a terminal state")
)

// PlanningError means no valid entry URL could be found for a goal. It is
// fatal to the session: the caller sees an error event and the session is
// evicted without ever requesting approval.
type PlanningError struct {
	Goal string
	Err  error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed for goal %q: %v", e.Goal, e.Err)
	}
	return fmt.Sprintf("planning failed for goal %q", e.Goal)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// NavigationError means a page visit failed after exhausting its retry
// budget (or was rejected by the content-quality check). The URL is
// blacklisted for the session and the loop continues.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// errLowQuality marks content-quality rejections inside NavigationError.
// Quality rejections skip the remaining retry budget: the page loaded fine,
// it just is not worth reading.
var errLowQuality = errors.New("page content rejected by quality check")
