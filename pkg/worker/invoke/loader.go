package invoke

import (
	"errors"
	"fmt"
	"path/filepath"
	"plugin"
	"strings"
	"sync"
)

// ErrAssemblyNotFound is returned by loaders that do not know a path.
var ErrAssemblyNotFound = errors.New("assembly not found")

// AssemblyLoader loads the assembly behind a function's script file.
type AssemblyLoader interface {
	Load(path string) (*Assembly, error)
}

// StaticLoader serves assemblies compiled into the worker binary. An
// assembly is found by full path, base file name, or assembly name (the base
// name without its extension). When a
// single assembly is registered it also serves the empty path.
type StaticLoader struct {
	mu         sync.RWMutex
	assemblies map[string]*Assembly
	count      int
	only       *Assembly
}

func NewStaticLoader(assemblies ...*Assembly) *StaticLoader {
	l := &StaticLoader{assemblies: make(map[string]*Assembly)}
	for _, a := range assemblies {
		l.Add(a.Name(), a)
	}
	return l
}

// Add registers a under path, its base name and the assembly name.
func (l *StaticLoader) Add(path string, a *Assembly) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.assemblies[a.Name()]; !seen {
		l.count++
		l.only = a
	}
	for _, key := range []string{path, filepath.Base(path), a.Name()} {
		if key != "" && key != "." {
			l.assemblies[key] = a
		}
	}
}

func (l *StaticLoader) Load(path string) (*Assembly, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.assemblies[path]; ok && path != "" {
		return a, nil
	}
	if path != "" {
		base := filepath.Base(path)
		for _, key := range []string{base, strings.TrimSuffix(base, filepath.Ext(base))} {
			if a, ok := l.assemblies[key]; ok {
				return a, nil
			}
		}
	}
	if path == "" && l.count == 1 {
		return l.only, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAssemblyNotFound, path)
}

// AssemblySymbol is the symbol a plugin exports its assembly under.
const AssemblySymbol = "Assembly"

// PluginLoader opens Go plugins (.so) and reads their exported Assembly
// variable. Opened plugins are kept for the process lifetime.
type PluginLoader struct {
	mu     sync.Mutex
	loaded map[string]*Assembly
}

func NewPluginLoader() *PluginLoader {
	return &PluginLoader{loaded: make(map[string]*Assembly)}
}

func (l *PluginLoader) Load(path string) (*Assembly, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty plugin path", ErrAssemblyNotFound)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.loaded[path]; ok {
		return a, nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup(AssemblySymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}

	var a *Assembly
	switch v := sym.(type) {
	case **Assembly:
		a = *v
	case *Assembly:
		a = v
	case func() *Assembly:
		a = v()
	default:
		return nil, fmt.Errorf("plugin %s: symbol %s has type %T", path, AssemblySymbol, sym)
	}
	if a == nil {
		return nil, fmt.Errorf("plugin %s: symbol %s is nil", path, AssemblySymbol)
	}
	l.loaded[path] = a
	return a, nil
}

// ChainLoader tries loaders in order and returns the first assembly found.
type ChainLoader []AssemblyLoader

func (c ChainLoader) Load(path string) (*Assembly, error) {
	var errs []error
	for _, l := range c {
		a, err := l.Load(path)
		if err == nil {
			return a, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAssemblyNotFound, path)
	}
	return nil, errors.Join(errs...)
}
