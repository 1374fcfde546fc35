package invoke

import (
	"fmt"
)

// EntryPointError is returned when a function's entry point cannot be
// resolved in its assembly.
type EntryPointError struct {
	EntryPoint string
	Path       string
	Err        error
}

func (e *EntryPointError) Error() string {
	msg := fmt.Sprintf("function entry point '%s' could not be resolved in '%s'", e.EntryPoint, e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EntryPointError) Unwrap() error { return e.Err }

// PanicError carries a panic raised by function code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string      { return fmt.Sprintf("function panicked: %v", e.Value) }
func (e *PanicError) StackTrace() string { return string(e.Stack) }
func (e *PanicError) UserError() bool    { return true }

// Unwrap exposes a panic value that is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// FunctionError marks an error returned by function code. It reads exactly
// like the wrapped error.
type FunctionError struct {
	Err error
}

func (e *FunctionError) Error() string   { return e.Err.Error() }
func (e *FunctionError) Unwrap() error   { return e.Err }
func (e *FunctionError) UserError() bool { return true }

func userError(err error) error {
	if err == nil {
		return nil
	}
	return &FunctionError{Err: err}
}
