package interp

import (
	"fmt"

	"github.com/jward/questscript/ast"
)

// MismatchKind distinguishes the TypeMismatchError cases.
type MismatchKind int

const (
	// Arity: wrong number of call arguments.
	Arity MismatchKind = iota
	// ArgType: an argument or member value of the wrong type.
	ArgType
	// WrongType: instantiation of something that is not a prototype value.
	WrongType
	// Result: a script function returned a value of the wrong type.
	Result
)

// TypeMismatchError is raised before any host closure runs or any host
// object is attached.
type TypeMismatchError struct {
	Kind MismatchKind
	// Name is the callable, member or operation involved.
	Name string
	// Index is the 0-based argument position for ArgType, -1 otherwise.
	Index int
	Want  string
	Got   string
}

func (e *TypeMismatchError) Error() string {
	switch e.Kind {
	case Arity:
		return fmt.Sprintf("type mismatch: %s: want %s arguments, got %s", e.Name, e.Want, e.Got)
	case WrongType:
		return fmt.Sprintf("wrong type: %s: want %s, got %s", e.Name, e.Want, e.Got)
	case Result:
		return fmt.Sprintf("type mismatch: %s: result: want %s, got %s", e.Name, e.Want, e.Got)
	}
	if e.Index >= 0 {
		return fmt.Sprintf("type mismatch: %s: argument %d: want %s, got %s", e.Name, e.Index+1, e.Want, e.Got)
	}
	return fmt.Sprintf("type mismatch: %s: want %s, got %s", e.Name, e.Want, e.Got)
}

// RuntimeError is any other failure during evaluation.
type RuntimeError struct {
	Range ast.Range
	Msg   string
	Err   error
}

func (e *RuntimeError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	return fmt.Sprintf("%s: %s", e.Range.Start, msg)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func runtimeErrorf(n ast.Node, format string, args ...any) error {
	return &RuntimeError{Range: span(n), Msg: fmt.Sprintf(format, args...)}
}

// wrapAt attaches a position to err. Typed errors pass through unchanged
// so callers can still match them with errors.As.
func wrapAt(n ast.Node, err error) error {
	switch err.(type) {
	case *TypeMismatchError, *RuntimeError:
		return err
	}
	return &RuntimeError{Range: span(n), Err: err}
}

func span(n ast.Node) ast.Range {
	if n == nil {
		return ast.Range{}
	}
	return n.Span()
}
