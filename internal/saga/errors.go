package saga

import (
	"errors"
	"fmt"
)

// StartError is returned by a scheduled mount effect when the task definition
// fails during initialisation. The namespace's state has already been stored.
type StartError struct {
	// Namespace is the namespace whose task failed to start.
	Namespace string

	// Err is the runner's error.
	Err error
}

// Error implements the error interface.
func (e *StartError) Error() string {
	return fmt.Sprintf("saga: start %q: %v", e.Namespace, e.Err)
}

// Unwrap returns the runner's error.
func (e *StartError) Unwrap() error {
	return e.Err
}

// IsStartError returns true if err is or wraps a StartError.
func IsStartError(err error) bool {
	var se *StartError
	return errors.As(err, &se)
}

// AsStartError extracts a StartError from the error chain.
// Returns nil if err does not contain one.
func AsStartError(err error) *StartError {
	var se *StartError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
