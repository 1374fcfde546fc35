package function

import (
	"reflect"
	"sync"
)

// Features is a per-invocation set of values keyed by their static type.
// Components store their invocation-scoped state here.
type Features struct {
	mu    sync.Mutex
	items map[reflect.Type]any
}

func NewFeatures() *Features {
	return &Features{items: make(map[reflect.Type]any)}
}

// Get returns the feature stored for T.
func Get[T any](f *Features) (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.items[reflect.TypeFor[T]()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Set stores v as the feature for T, replacing any previous value.
func Set[T any](f *Features, v T) {
	f.mu.Lock()
	f.items[reflect.TypeFor[T]()] = v
	f.mu.Unlock()
}

// GetOrAdd returns the feature for T, creating it with create on first use.
// create runs at most once per feature set.
func GetOrAdd[T any](f *Features, create func() T) T {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reflect.TypeFor[T]()
	if v, ok := f.items[key]; ok {
		return v.(T)
	}
	v := create()
	f.items[key] = v
	return v
}
