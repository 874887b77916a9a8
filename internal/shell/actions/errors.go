package actions

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrPrecondition is returned when an action's inputs are inconsistent
	// with the state it finds. No side effect has happened yet.
	ErrPrecondition = errors.New("precondition failed")

	// ErrInvalidParams is returned when action parameters cannot be decoded
	// or a required parameter is missing.
	ErrInvalidParams = errors.New("invalid action parameters")

	// ErrUnknownAction is returned when no action is registered under a name.
	ErrUnknownAction = errors.New("unknown action")

	// ErrDuplicateAction is returned when a name is registered twice.
	ErrDuplicateAction = errors.New("action already registered")
)

// Error is a user-facing action failure.
type Error struct {
	Action  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fail returns a user-facing precondition failure for action.
func Fail(action, message string) *Error {
	return &Error{
		Action:  action,
		Message: message,
		Err:     ErrPrecondition,
	}
}

// invalidParams returns a user-facing parameter error for action.
func invalidParams(action, message string) *Error {
	return &Error{
		Action:  action,
		Message: message,
		Err:     ErrInvalidParams,
	}
}

// StepError reports which configured step failed.
type StepError struct {
	Index  int
	Step   string
	Action string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
