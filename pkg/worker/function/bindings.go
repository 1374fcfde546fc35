package function

import (
	"maps"
	"sync"
)

// BindingsFeature accumulates the output binding values and the return value
// produced during an invocation.
type BindingsFeature struct {
	mu        sync.Mutex
	outputs   map[string]any
	result    any
	hasResult bool
}

func newBindingsFeature() *BindingsFeature {
	return &BindingsFeature{outputs: make(map[string]any)}
}

// SetOutputBinding records the value of a named output binding.
func (b *BindingsFeature) SetOutputBinding(name string, v any) {
	b.mu.Lock()
	b.outputs[name] = v
	b.mu.Unlock()
}

func (b *BindingsFeature) OutputBinding(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.outputs[name]
	return v, ok
}

// OutputBindings returns a snapshot of the recorded output values.
func (b *BindingsFeature) OutputBindings() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.outputs)
}

// SetInvocationResult stores the function's return value.
func (b *BindingsFeature) SetInvocationResult(v any) {
	b.mu.Lock()
	b.result = v
	b.hasResult = true
	b.mu.Unlock()
}

// InvocationResult returns the stored return value and whether one was set.
func (b *BindingsFeature) InvocationResult() (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result, b.hasResult
}

// OutputBinding is a typed handle to one output binding of an invocation.
type OutputBinding[T any] struct {
	fc   *Context
	name string
}

// Output returns the typed handle for the named output binding.
func Output[T any](fc *Context, name string) OutputBinding[T] {
	return OutputBinding[T]{fc: fc, name: name}
}

func (o OutputBinding[T]) Name() string { return o.name }

func (o OutputBinding[T]) Set(v T) {
	o.fc.Bindings().SetOutputBinding(o.name, v)
}

// Get returns the value set so far. It reports false when nothing was set or
// the stored value is not a T.
func (o OutputBinding[T]) Get() (T, bool) {
	v, ok := o.fc.Bindings().OutputBinding(o.name)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
