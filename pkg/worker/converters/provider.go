package converters

import (
	"fmt"
	"slices"
	"sync"
)

// Built-in converter names. Bindings refer to converters by these names in
// the converterType and supportedConverters properties.
const (
	NameFunctionContext  = "FunctionContextConverter"
	NameType             = "TypeConverter"
	NameGuid             = "GuidConverter"
	NameDateTime         = "DateTimeConverter"
	NameMemory           = "MemoryConverter"
	NameStringToByte     = "StringToByteConverter"
	NameJSONPoco         = "JsonPocoConverter"
	NameArray            = "ArrayConverter"
	NameModelBindingData = "ModelBindingDataConverter"
)

type entry struct {
	name string
	conv Converter
}

// Provider holds the ordered default converters and the converters available
// by name.
type Provider struct {
	mu       sync.RWMutex
	defaults []entry
	byName   map[string]Converter
}

// NewProvider returns an empty provider.
func NewProvider() *Provider {
	return &Provider{byName: make(map[string]Converter)}
}

// DefaultProvider returns a provider with the built-in converters registered
// in their default order. The model binding data converter is available by
// name only.
func DefaultProvider(handlers ...ModelBindingHandler) *Provider {
	p := NewProvider()
	p.MustRegister(NameFunctionContext, FunctionContextConverter{})
	p.MustRegister(NameType, TypeConverter{})
	p.MustRegister(NameGuid, GuidConverter{})
	p.MustRegister(NameDateTime, DateTimeConverter{})
	p.MustRegister(NameMemory, MemoryConverter{})
	p.MustRegister(NameStringToByte, StringToByteConverter{})
	p.MustRegister(NameJSONPoco, JSONPocoConverter{})
	p.MustRegister(NameArray, NewArrayConverter(p))
	p.MustRegisterNamed(NameModelBindingData, NewModelBindingDataConverter(handlers...))
	return p
}

// Register appends c to the default chain and makes it available by name.
func (p *Provider) Register(name string, c Converter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.addNamedLocked(name, c); err != nil {
		return err
	}
	p.defaults = append(p.defaults, entry{name: name, conv: c})
	return nil
}

// RegisterNamed makes c available by name without adding it to the default
// chain.
func (p *Provider) RegisterNamed(name string, c Converter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addNamedLocked(name, c)
}

func (p *Provider) MustRegister(name string, c Converter) {
	if err := p.Register(name, c); err != nil {
		panic(err)
	}
}

func (p *Provider) MustRegisterNamed(name string, c Converter) {
	if err := p.RegisterNamed(name, c); err != nil {
		panic(err)
	}
}

func (p *Provider) addNamedLocked(name string, c Converter) error {
	if name == "" || c == nil {
		return fmt.Errorf("converter name and implementation are required")
	}
	if _, exists := p.byName[name]; exists {
		return fmt.Errorf("converter %s already registered", name)
	}
	p.byName[name] = c
	return nil
}

// Get returns the converter registered under name.
func (p *Provider) Get(name string) (Converter, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.byName[name]
	return c, ok
}

// Defaults returns the names of the default chain in order.
func (p *Provider) Defaults() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.defaults))
	for i, e := range p.defaults {
		names[i] = e.name
	}
	return names
}

func (p *Provider) defaultEntries() []entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.defaults)
}
