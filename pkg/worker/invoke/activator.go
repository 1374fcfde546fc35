package invoke

import (
	"fmt"
	"reflect"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
)

// Activator creates the receiver for an instance method.
type Activator interface {
	CreateInstance(t reflect.Type, fc *function.Context) (any, error)
}

// DefaultActivator asks the invocation's service provider for an instance and
// falls back to a zero value of t.
type DefaultActivator struct{}

func (DefaultActivator) CreateInstance(t reflect.Type, fc *function.Context) (any, error) {
	if fc != nil && fc.InstanceServices != nil {
		v, ok, err := fc.InstanceServices.GetService(t, fc)
		if err != nil {
			return nil, fmt.Errorf("activate %s: %w", t, err)
		}
		if ok {
			return v, nil
		}
	}
	if t.Kind() == reflect.Pointer {
		return reflect.New(t.Elem()).Interface(), nil
	}
	return reflect.New(t).Elem().Interface(), nil
}

// nullActivator serves static functions.
type nullActivator struct{}

func (nullActivator) CreateInstance(reflect.Type, *function.Context) (any, error) { return nil, nil }
