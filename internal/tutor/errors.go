package tutor

import "fmt"

// ValidationError marks missing or malformed caller input. The API layer
// maps it to HTTP 400.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func errValidation(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}
