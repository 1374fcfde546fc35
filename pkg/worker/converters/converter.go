// Package converters turns raw binding values into the parameter types a
// function declares. Converters are tried in order; the first one that
// succeeds or fails decides the outcome, and an unhandled result passes the
// value on to the next converter.
package converters

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
)

// Status is the outcome of a conversion attempt.
type Status int

const (
	StatusUnhandled Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	default:
		return "Unhandled"
	}
}

// Result is the tagged result of a conversion.
type Result struct {
	status Status
	value  any
	err    error
}

// Success returns a Succeeded result carrying v.
func Success(v any) Result { return Result{status: StatusSucceeded, value: v} }

// Failure returns a Failed result. A nil err is replaced with a generic one.
func Failure(err error) Result {
	if err == nil {
		err = fmt.Errorf("conversion failed")
	}
	return Result{status: StatusFailed, err: err}
}

// Unhandled returns a result that lets the next converter run.
func Unhandled() Result { return Result{} }

func (r Result) Status() Status { return r.status }
func (r Result) Value() any     { return r.value }
func (r Result) Err() error     { return r.err }

// Context is the input of a single conversion.
type Context struct {
	TargetType      reflect.Type
	Source          any
	FunctionContext *function.Context
	Properties      map[string]any
}

// Converter converts a source value to a target type.
type Converter interface {
	Convert(ctx context.Context, cc *Context) Result
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, cc *Context) Result

func (f ConverterFunc) Convert(ctx context.Context, cc *Context) Result { return f(ctx, cc) }

// TypeLimited is implemented by converters that only handle specific target
// types. An empty list means any type.
type TypeLimited interface {
	SupportedTypes() []reflect.Type
}
