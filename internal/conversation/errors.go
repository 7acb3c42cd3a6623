package conversation

import "fmt"

// ValidationError is returned when a message is rejected before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid message %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a message ID is unknown.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("message %q not found", e.ID)
}

// InvalidTransitionError is returned for a backward status transition.
type InvalidTransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("message %q: invalid status transition from %s to %s", e.ID, e.From, e.To)
}
