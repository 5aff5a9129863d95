package questscript

import "fmt"

// ExecutionError is returned by Call and Instantiate. Entry names the
// function, prototype or object the host asked for; Err is the inner
// *TypeMismatchError, *RuntimeError or host error.
type ExecutionError struct {
	Entry string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("questscript: %s: %v", e.Entry, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
