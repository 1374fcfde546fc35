// Package binding resolves the argument list of an invocation from its input
// data, trigger metadata and invocation context.
package binding

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/converters"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

// Result is the resolved argument list of an invocation, aligned with the
// function's parameters. It is shared: every caller for the same invocation
// gets the same Result and sees writes to Values.
type Result struct {
	Values []any
}

// InputConversionError reports every parameter that could not be bound.
type InputConversionError struct {
	Function string
	Errors   []string
}

func (e *InputConversionError) Error() string {
	return fmt.Sprintf("Error converting %d input parameters for Function '%s': %s",
		len(e.Errors), e.Function, strings.Join(e.Errors, "\n"))
}

// ErrNoDefinition is returned when an invocation has no function definition.
var ErrNoDefinition = errors.New("invocation has no function definition")

// state is the per-invocation binding memo.
type state struct {
	mu     sync.Mutex
	result *Result
	cache  map[string]converters.Result
}

func stateOf(fc *function.Context) *state {
	return function.GetOrAdd(fc.Features(), func() *state {
		return &state{cache: make(map[string]converters.Result)}
	})
}

// Binder binds invocation inputs through a conversion engine.
type Binder struct {
	engine *converters.Engine
}

func NewBinder(engine *converters.Engine) *Binder {
	if engine == nil {
		engine = converters.NewEngine(nil)
	}
	return &Binder{engine: engine}
}

// BindFunctionInput resolves one value per parameter. The result is computed
// once per invocation; later calls return the same *Result.
func (b *Binder) BindFunctionInput(ctx context.Context, fc *function.Context) (*Result, error) {
	def := fc.Definition
	if def == nil {
		return nil, ErrNoDefinition
	}

	st := stateOf(fc)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.result != nil {
		return st.result, nil
	}

	values := make([]any, def.NumParameters())
	var errs []string

	for i := range values {
		p := def.Parameter(i)

		if converters.IsContextType(p.Type) {
			values[i] = contextArgument(fc, p.Type)
			continue
		}

		source, found := fc.LookupInput(p.Name)
		key := cacheKey(p.Name)
		res, cached := st.cache[key]
		if !cached {
			if !found && p.HasDefaultValue {
				values[i] = p.DefaultValue
				continue
			}
			res = b.engine.Convert(ctx, &converters.Context{
				TargetType:      p.Type,
				Source:          source,
				FunctionContext: fc,
				Properties:      p.Properties,
			})
			st.cache[key] = res
		}

		switch res.Status() {
		case converters.StatusSucceeded:
			values[i] = res.Value()
		case converters.StatusFailed:
			errs = append(errs, fmt.Sprintf("Cannot convert input parameter '%s' to type '%s' from type '%s'. Error:%s",
				p.Name, metadata.TypeName(p.Type), metadata.TypeName(reflect.TypeOf(source)), res.Err()))
		default:
			switch {
			case p.HasDefaultValue:
				values[i] = p.DefaultValue
			case p.IsReferenceOrNullable:
				values[i] = nil
			default:
				errs = append(errs, fmt.Sprintf("Could not populate the value for '%s' parameter. Consider updating the parameter with an default value.", p.Name))
			}
		}
	}

	if len(errs) > 0 {
		return nil, &InputConversionError{Function: def.Name(), Errors: errs}
	}

	st.result = &Result{Values: values}
	return st.result, nil
}

// cacheKey matches binding names the way input lookup does, ignoring case.
func cacheKey(name string) string { return strings.ToLower(name) }

func contextArgument(fc *function.Context, t reflect.Type) any {
	if t == reflect.TypeFor[*function.Context]() {
		return fc
	}
	return function.NewGoContext(fc.Context(), fc)
}
