package dispatch

import (
	"fmt"
	"strings"
)

// NotFoundError reports a referenced id that does not resolve to a record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }

// EligibilityError carries every business rule a dispatch request violated,
// so the operator can correct all of them at once.
type EligibilityError struct {
	Reasons []string
}

func (e *EligibilityError) Error() string {
	return "dispatch rejected: " + strings.Join(e.Reasons, "; ")
}

// InvalidTransitionError reports a life-cycle move that is not legal from the
// record's current status.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	Action string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s: status is %q", e.Action, e.Entity, e.ID, e.From)
}

// InvalidStateError reports an operation disallowed by current non-lifecycle
// state, such as opening maintenance on a vehicle that is on a trip.
type InvalidStateError struct {
	Entity string
	ID     string
	State  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s %s is %q: %s", e.Entity, e.ID, e.State, e.Reason)
}
