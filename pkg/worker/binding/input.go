package binding

import (
	"context"
	"fmt"
	"reflect"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/converters"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

// BindingResult is a handle to one bound input of an invocation.
type BindingResult[T any] struct {
	st    *state
	name  string
	key   string
	index int
	value T
}

func (r *BindingResult[T]) Name() string { return r.name }
func (r *BindingResult[T]) Value() T     { return r.value }

// SetValue replaces the bound value. The new value is seen by later BindInput
// calls and in the argument list returned by BindFunctionInput.
func (r *BindingResult[T]) SetValue(v T) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.value = v
	r.st.cache[r.key] = converters.Success(v)
	if r.st.result != nil && r.index >= 0 {
		r.st.result.Values[r.index] = v
	}
}

// BindInput binds a single input binding as T. It shares the per-invocation
// cache with BindFunctionInput.
func BindInput[T any](ctx context.Context, b *Binder, fc *function.Context, meta *metadata.BindingMetadata) (*BindingResult[T], error) {
	st := stateOf(fc)
	st.mu.Lock()
	defer st.mu.Unlock()

	name := meta.Name()
	key := cacheKey(name)
	target := reflect.TypeFor[T]()

	res, cached := st.cache[key]
	if !cached {
		source, _ := fc.LookupInput(name)
		res = b.engine.Convert(ctx, &converters.Context{
			TargetType:      target,
			Source:          source,
			FunctionContext: fc,
			Properties:      meta.Properties(),
		})
		st.cache[key] = res
	}

	index := -1
	if fc.Definition != nil {
		index = fc.Definition.ParameterIndex(name)
	}
	out := &BindingResult[T]{st: st, name: name, key: key, index: index}

	switch res.Status() {
	case converters.StatusSucceeded:
		if res.Value() == nil {
			return out, nil
		}
		v, ok := res.Value().(T)
		if !ok {
			return nil, fmt.Errorf("binding '%s' holds %T, not %s", name, res.Value(), metadata.TypeName(target))
		}
		out.value = v
		return out, nil
	case converters.StatusFailed:
		return nil, fmt.Errorf("cannot convert binding '%s' to type '%s': %w", name, metadata.TypeName(target), res.Err())
	default:
		return nil, fmt.Errorf("could not populate the value for '%s' binding", name)
	}
}
