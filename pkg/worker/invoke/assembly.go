// Package invoke locates function entry points, builds invokers for them and
// executes invocations.
//
// Go cannot discover parameter names or defaults at run time, so function
// code registers its entry points in an Assembly:
//
//	var Assembly = invoke.NewAssembly("orders")
//
//	func init() {
//		Assembly.MustRegisterType("orders.Handlers", &Handlers{},
//			invoke.Method("Process", invoke.Param("ctx"), invoke.Param("order")))
//		Assembly.MustRegisterStatic("orders.Ping", Ping, invoke.Param("req"))
//	}
package invoke

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

// ParamSpec names one parameter of a registered method.
type ParamSpec struct {
	Name       string
	Default    any
	HasDefault bool
	Properties map[string]any
}

// ParamOption configures a ParamSpec.
type ParamOption func(*ParamSpec)

// Param describes a parameter by name.
func Param(name string, opts ...ParamOption) ParamSpec {
	p := ParamSpec{Name: name}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithDefault makes the parameter optional.
func WithDefault(v any) ParamOption {
	return func(p *ParamSpec) {
		p.Default = v
		p.HasDefault = true
	}
}

// WithProperty adds a property to the parameter's property bag, for example
// a converterType hint.
func WithProperty(key string, v any) ParamOption {
	return func(p *ParamSpec) {
		if p.Properties == nil {
			p.Properties = map[string]any{}
		}
		p.Properties[key] = v
	}
}

// MethodSpec describes an instance method to register.
type MethodSpec struct {
	Name   string
	Params []ParamSpec
}

func Method(name string, params ...ParamSpec) MethodSpec {
	return MethodSpec{Name: name, Params: params}
}

// MethodInfo is a resolved entry point.
type MethodInfo struct {
	EntryPoint string
	// Receiver is the activated type for instance methods and nil for
	// static functions.
	Receiver reflect.Type
	Func     reflect.Value
	Params   []ParamSpec
	// In holds the parameter types, excluding the receiver.
	In []reflect.Type
}

// IsStatic reports whether no instance is needed to call the method.
func (m *MethodInfo) IsStatic() bool { return m.Receiver == nil }

// Signature describes the method for building a function definition.
func (m *MethodInfo) Signature() metadata.MethodSignature {
	sig := metadata.MethodSignature{Static: m.IsStatic()}
	for i, p := range m.Params {
		sig.Params = append(sig.Params, metadata.ParamInfo{
			Name:         p.Name,
			Type:         m.In[i],
			DefaultValue: p.Default,
			HasDefault:   p.HasDefault,
			Properties:   p.Properties,
		})
	}
	return sig
}

// Assembly is a named set of entry points.
type Assembly struct {
	name string

	mu      sync.RWMutex
	methods map[string]*MethodInfo
}

func NewAssembly(name string) *Assembly {
	return &Assembly{name: name, methods: make(map[string]*MethodInfo)}
}

func (a *Assembly) Name() string { return a.name }

// RegisterType registers methods of prototype's type under typeName. Methods
// are looked up on the prototype's type and then on its pointer type.
func (a *Assembly) RegisterType(typeName string, prototype any, methods ...MethodSpec) error {
	t := reflect.TypeOf(prototype)
	if t == nil {
		return fmt.Errorf("register %s: prototype is nil", typeName)
	}

	for _, ms := range methods {
		recv := t
		m, ok := recv.MethodByName(ms.Name)
		if !ok && t.Kind() != reflect.Pointer {
			recv = reflect.PointerTo(t)
			m, ok = recv.MethodByName(ms.Name)
		}
		if !ok {
			return fmt.Errorf("register %s: type %s has no method %s", typeName, t, ms.Name)
		}

		in := make([]reflect.Type, 0, m.Type.NumIn()-1)
		for i := 1; i < m.Type.NumIn(); i++ {
			in = append(in, m.Type.In(i))
		}
		info := &MethodInfo{
			EntryPoint: typeName + "." + ms.Name,
			Receiver:   recv,
			Func:       m.Func,
			Params:     ms.Params,
			In:         in,
		}
		if err := a.add(info, m.Type.IsVariadic()); err != nil {
			return err
		}
	}
	return nil
}

// RegisterStatic registers fn under qualifiedName, which must have the form
// <type>.<method>.
func (a *Assembly) RegisterStatic(qualifiedName string, fn any, params ...ParamSpec) error {
	if _, _, err := metadata.SplitEntryPoint(qualifiedName); err != nil {
		return fmt.Errorf("register static: %w", err)
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("register %s: %T is not a function", qualifiedName, fn)
	}

	in := make([]reflect.Type, 0, v.Type().NumIn())
	for i := range v.Type().NumIn() {
		in = append(in, v.Type().In(i))
	}
	return a.add(&MethodInfo{
		EntryPoint: qualifiedName,
		Func:       v,
		Params:     params,
		In:         in,
	}, v.Type().IsVariadic())
}

func (a *Assembly) MustRegisterType(typeName string, prototype any, methods ...MethodSpec) {
	if err := a.RegisterType(typeName, prototype, methods...); err != nil {
		panic(err)
	}
}

func (a *Assembly) MustRegisterStatic(qualifiedName string, fn any, params ...ParamSpec) {
	if err := a.RegisterStatic(qualifiedName, fn, params...); err != nil {
		panic(err)
	}
}

func (a *Assembly) add(info *MethodInfo, variadic bool) error {
	if variadic {
		return fmt.Errorf("register %s: variadic functions are not supported", info.EntryPoint)
	}
	if len(info.Params) != len(info.In) {
		return fmt.Errorf("register %s: %d parameter specs for %d parameters", info.EntryPoint, len(info.Params), len(info.In))
	}
	if _, err := shapeOf(info.Func.Type()); err != nil {
		return fmt.Errorf("register %s: %w", info.EntryPoint, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.methods[info.EntryPoint]; exists {
		return fmt.Errorf("register %s: entry point already registered", info.EntryPoint)
	}
	a.methods[info.EntryPoint] = info
	return nil
}

// Lookup resolves an entry point.
func (a *Assembly) Lookup(entryPoint string) (*MethodInfo, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.methods[entryPoint]
	return m, ok
}

// EntryPoints lists the registered entry points in sorted order.
func (a *Assembly) EntryPoints() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.methods))
	for ep := range a.methods {
		out = append(out, ep)
	}
	slices.Sort(out)
	return out
}
