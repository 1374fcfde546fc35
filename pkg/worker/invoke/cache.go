package invoke

import (
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// FunctionInvoker activates and calls one loaded function.
type FunctionInvoker struct {
	definition *metadata.FunctionDefinition
	method     *MethodInfo
	invoker    MethodInvoker
	activator  Activator
}

func (f *FunctionInvoker) Definition() *metadata.FunctionDefinition { return f.definition }

// CreateInstance returns the receiver for the call, or nil for static
// functions.
func (f *FunctionInvoker) CreateInstance(fc *function.Context) (any, error) {
	return f.activator.CreateInstance(f.method.Receiver, fc)
}

// Invoke calls the function. A panic in function code is returned as a
// *PanicError.
func (f *FunctionInvoker) Invoke(instance any, args []any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return f.invoker.Invoke(instance, args)
}

// Factory builds function invokers by resolving entry points through an
// assembly loader.
type Factory struct {
	Loader    AssemblyLoader
	Activator Activator
}

// Resolve finds the method an entry point names.
func (f *Factory) Resolve(path, entryPoint string) (*MethodInfo, error) {
	if f.Loader == nil {
		return nil, &EntryPointError{EntryPoint: entryPoint, Path: path, Err: ErrAssemblyNotFound}
	}
	asm, err := f.Loader.Load(path)
	if err != nil {
		return nil, &EntryPointError{EntryPoint: entryPoint, Path: path, Err: err}
	}
	m, ok := asm.Lookup(entryPoint)
	if !ok {
		return nil, &EntryPointError{EntryPoint: entryPoint, Path: path}
	}
	return m, nil
}

// Define resolves meta's entry point and builds its function definition.
// The definition's parameters come from the registered method signature.
func (f *Factory) Define(functionID string, meta *rpc.RpcFunctionMetadata) (*metadata.FunctionDefinition, error) {
	if meta == nil {
		return nil, &metadata.ValidationError{Function: functionID, Reason: "function metadata is missing"}
	}
	m, err := f.Resolve(metadata.PathToAssembly(meta), meta.EntryPoint)
	if err != nil {
		return nil, err
	}
	return metadata.BuildDefinition(functionID, meta, m.Signature())
}

// Create builds the invoker for def.
func (f *Factory) Create(def *metadata.FunctionDefinition) (*FunctionInvoker, error) {
	m, err := f.Resolve(def.PathToAssembly(), def.EntryPoint())
	if err != nil {
		return nil, err
	}
	inv, err := NewMethodInvoker(m)
	if err != nil {
		return nil, fmt.Errorf("build invoker for %s: %w", def.EntryPoint(), err)
	}

	var act Activator = nullActivator{}
	if !m.IsStatic() {
		act = f.Activator
		if act == nil {
			act = DefaultActivator{}
		}
	}
	return &FunctionInvoker{definition: def, method: m, invoker: inv, activator: act}, nil
}

// InvokerFactory builds a FunctionInvoker for a definition.
type InvokerFactory interface {
	Create(def *metadata.FunctionDefinition) (*FunctionInvoker, error)
}

// Cache maps function ids to invokers. Each invoker is built at most once;
// concurrent misses for the same id share one construction.
type Cache struct {
	factory InvokerFactory

	mu    sync.RWMutex
	items map[string]*FunctionInvoker
	group singleflight.Group
}

func NewCache(factory InvokerFactory) *Cache {
	return &Cache{factory: factory, items: make(map[string]*FunctionInvoker)}
}

// GetOrCreate returns the cached invoker for def, building it on a miss.
func (c *Cache) GetOrCreate(def *metadata.FunctionDefinition) (*FunctionInvoker, error) {
	id := def.ID()
	c.mu.RLock()
	inv, ok := c.items[id]
	c.mu.RUnlock()
	if ok {
		return inv, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		c.mu.RLock()
		inv, ok := c.items[id]
		c.mu.RUnlock()
		if ok {
			return inv, nil
		}
		inv, err := c.factory.Create(def)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[id] = inv
		c.mu.Unlock()
		return inv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FunctionInvoker), nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Reset drops every cached invoker.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.items = make(map[string]*FunctionInvoker)
	c.mu.Unlock()
}
