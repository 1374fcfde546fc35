package invoke

import (
	"context"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/binding"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
)

// Executor runs one invocation: it resolves the invoker, binds the inputs,
// activates the instance and calls the function. The return value is stored
// on the invocation's bindings feature. Errors are returned unchanged and
// nothing is retried.
type Executor struct {
	cache  *Cache
	binder *binding.Binder
}

func NewExecutor(cache *Cache, binder *binding.Binder) *Executor {
	return &Executor{cache: cache, binder: binder}
}

func (e *Executor) Cache() *Cache { return e.cache }

func (e *Executor) Execute(ctx context.Context, fc *function.Context) error {
	if fc.Definition == nil {
		return binding.ErrNoDefinition
	}
	inv, err := e.cache.GetOrCreate(fc.Definition)
	if err != nil {
		return err
	}

	input, err := e.binder.BindFunctionInput(ctx, fc)
	if err != nil {
		return err
	}

	instance, err := inv.CreateInstance(fc)
	if err != nil {
		return err
	}

	result, err := inv.Invoke(instance, input.Values)
	if err != nil {
		return err
	}
	fc.Bindings().SetInvocationResult(result)
	return nil
}
