package invoke

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/converters"
)

// MethodInvoker calls a resolved method with a bound argument list.
type MethodInvoker interface {
	Invoke(instance any, args []any) (any, error)
}

type returnShape int

const (
	shapeVoid       returnShape = iota // func(...)
	shapeTask                          // func(...) error
	shapeTaskResult                    // func(...) (T, error)
	shapeValue                         // func(...) T
)

var errorType = reflect.TypeFor[error]()

func shapeOf(ft reflect.Type) (returnShape, error) {
	switch {
	case ft.NumOut() == 0:
		return shapeVoid, nil
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
		return shapeTask, nil
	case ft.NumOut() == 1:
		return shapeValue, nil
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		return shapeTaskResult, nil
	}
	return 0, fmt.Errorf("unsupported return signature %s", ft)
}

// NewMethodInvoker picks the invoker for the method's return shape.
func NewMethodInvoker(m *MethodInfo) (MethodInvoker, error) {
	shape, err := shapeOf(m.Func.Type())
	if err != nil {
		return nil, err
	}
	c := call{fn: m.Func, receiver: m.Receiver != nil, in: m.In}
	switch shape {
	case shapeVoid:
		return voidInvoker{c}, nil
	case shapeTask:
		return taskInvoker{c}, nil
	case shapeTaskResult:
		return taskResultInvoker{c}, nil
	default:
		return valueInvoker{c}, nil
	}
}

type call struct {
	fn       reflect.Value
	receiver bool
	in       []reflect.Type
}

// invoke copies args into method-shaped locals, calls the method, and copies
// pointer locals back into args.
func (c call) invoke(instance any, args []any) ([]reflect.Value, error) {
	if len(args) != len(c.in) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(c.in), len(args))
	}

	offset := 0
	locals := make([]reflect.Value, 0, len(c.in)+1)
	if c.receiver {
		if instance == nil {
			return nil, errors.New("instance method called without an instance")
		}
		locals = append(locals, reflect.ValueOf(instance))
		offset = 1
	}
	for i, t := range c.in {
		v, err := argValue(args[i], t)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		locals = append(locals, v)
	}

	out := c.fn.Call(locals)

	for i, t := range c.in {
		if t.Kind() == reflect.Pointer {
			args[i] = locals[offset+i].Interface()
		}
	}
	return out, nil
}

func argValue(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if isNumber(v.Kind()) && isNumber(t.Kind()) {
		if out, ok := converters.ConvertNumber(v, t); ok {
			return out, nil
		}
		return reflect.Value{}, fmt.Errorf("%v does not fit in %s", arg, t)
	}
	if v.Type().ConvertibleTo(t) && v.Kind() == t.Kind() {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

func isNumber(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

type voidInvoker struct{ call }

func (i voidInvoker) Invoke(instance any, args []any) (any, error) {
	_, err := i.invoke(instance, args)
	return nil, err
}

type taskInvoker struct{ call }

func (i taskInvoker) Invoke(instance any, args []any) (any, error) {
	out, err := i.invoke(instance, args)
	if err != nil {
		return nil, err
	}
	return nil, userError(asError(out[0]))
}

type taskResultInvoker struct{ call }

func (i taskResultInvoker) Invoke(instance any, args []any) (any, error) {
	out, err := i.invoke(instance, args)
	if err != nil {
		return nil, err
	}
	if err := asError(out[1]); err != nil {
		return nil, userError(err)
	}
	return out[0].Interface(), nil
}

type valueInvoker struct{ call }

func (i valueInvoker) Invoke(instance any, args []any) (any, error) {
	out, err := i.invoke(instance, args)
	if err != nil {
		return nil, err
	}
	return out[0].Interface(), nil
}
