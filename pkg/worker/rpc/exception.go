package rpc

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// UserError marks an error as raised by user code.
type UserError interface {
	error
	UserError() bool
}

// StackTracer is implemented by errors that captured a stack.
type StackTracer interface {
	StackTrace() string
}

// Sourced is implemented by errors that know which component raised them.
type Sourced interface {
	Source() string
}

// NewException maps an error to its wire form. The message is the full error
// string; type, source and stack come from the innermost error that provides them.
func NewException(err error) *RpcException {
	if err == nil {
		return nil
	}

	ex := &RpcException{
		Message: err.Error(),
		Type:    errorTypeName(err),
	}

	var ue UserError
	if errors.As(err, &ue) {
		ex.IsUserException = ue.UserError()
	}
	var st StackTracer
	if errors.As(err, &st) {
		ex.StackTrace = st.StackTrace()
	}
	var src Sourced
	if errors.As(err, &src) {
		ex.Source = src.Source()
	}
	if ex.Source == "" {
		ex.Source = "worker"
	}
	return ex
}

// errorTypeName returns the Go type of the innermost wrapped error.
func errorTypeName(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	t := reflect.TypeOf(err)
	name := t.String()
	if strings.HasPrefix(name, "*errors.") || strings.HasPrefix(name, "*fmt.") {
		return "error"
	}
	return name
}

// ExceptionMessage formats an RpcException for logs.
func ExceptionMessage(ex *RpcException) string {
	if ex == nil {
		return ""
	}
	if ex.Type == "" {
		return ex.Message
	}
	return fmt.Sprintf("%s: %s", ex.Type, ex.Message)
}
