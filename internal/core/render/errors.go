package render

import (
	"errors"
	"fmt"
)

// ErrRender is returned when a value cannot be rendered.
var ErrRender = errors.New("render failed")

// RenderError reports the value that failed to render.
type RenderError struct {
	Value   string
	Message string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s in %q: %v", e.Message, e.Value, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// NewRenderError creates a new RenderError.
func NewRenderError(value, message string, err error) *RenderError {
	return &RenderError{
		Value:   value,
		Message: message,
		Err:     err,
	}
}
