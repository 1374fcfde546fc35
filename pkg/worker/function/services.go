package function

import (
	"fmt"
	"reflect"
	"sync"
)

// ServiceProvider creates instances for function activation.
type ServiceProvider interface {
	// GetService returns an instance of t, or false when t is not provided.
	GetService(t reflect.Type, fc *Context) (any, bool, error)
}

// Services is a ServiceProvider backed by per-type factories.
type Services struct {
	mu        sync.RWMutex
	factories map[reflect.Type]func(*Context) (any, error)
}

func NewServices() *Services {
	return &Services{factories: make(map[reflect.Type]func(*Context) (any, error))}
}

// Provide registers a factory producing values of T.
func Provide[T any](s *Services, factory func(*Context) (T, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[reflect.TypeFor[T]()] = func(fc *Context) (any, error) {
		return factory(fc)
	}
}

// ProvideValue registers a shared instance.
func ProvideValue[T any](s *Services, v T) {
	Provide(s, func(*Context) (T, error) { return v, nil })
}

func (s *Services) GetService(t reflect.Type, fc *Context) (any, bool, error) {
	s.mu.RLock()
	factory, ok := s.factories[t]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	v, err := factory(fc)
	if err != nil {
		return nil, true, fmt.Errorf("create %s: %w", t, err)
	}
	return v, true, nil
}
