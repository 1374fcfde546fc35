package converters

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

// Engine runs the converter chain for one value. It is safe for concurrent
// use and holds no per-invocation state.
type Engine struct {
	provider *Provider
}

// NewEngine returns an engine over p. A nil provider uses the defaults.
func NewEngine(p *Provider) *Engine {
	if p == nil {
		p = DefaultProvider()
	}
	return &Engine{provider: p}
}

func (e *Engine) Provider() *Provider { return e.provider }

// Convert tries converters in this order:
//
//  1. the converter named by the converterType property
//  2. the supportedConverters advertised by the binding, filtered by target type
//  3. the model binding data converter, when the binding supports deferred binding
//  4. the default chain, unless allowConverterFallback is false
//
// The first Succeeded or Failed result is returned. A converter runs at most
// once per call.
func (e *Engine) Convert(ctx context.Context, cc *Context) Result {
	tried := make(map[string]bool)
	run := func(name string, c Converter) (Result, bool) {
		if tried[name] {
			return Unhandled(), false
		}
		tried[name] = true
		r := c.Convert(ctx, cc)
		return r, r.Status() != StatusUnhandled
	}

	if name, ok := cc.Properties[metadata.PropConverterType].(string); ok && name != "" {
		c, ok := e.provider.Get(name)
		if !ok {
			return Failure(fmt.Errorf("converter %q is not registered", name))
		}
		if r, done := run(name, c); done {
			return r
		}
	}

	for _, adv := range advertisedConverters(cc.Properties[metadata.PropSupportedConverters]) {
		c, ok := e.provider.Get(adv.name)
		if !ok {
			return Failure(fmt.Errorf("converter %q is not registered", adv.name))
		}
		if !supportsTarget(adv.types, c, cc.TargetType) {
			continue
		}
		if r, done := run(adv.name, c); done {
			return r
		}
	}

	if deferred, _ := cc.Properties[metadata.PropSupportsDeferredBinding].(bool); deferred {
		if c, ok := e.provider.Get(NameModelBindingData); ok {
			if r, done := run(NameModelBindingData, c); done {
				return r
			}
		}
	}

	if fallbackAllowed(cc.Properties) {
		for _, d := range e.provider.defaultEntries() {
			if r, done := run(d.name, d.conv); done {
				return r
			}
		}
	}

	return Unhandled()
}

type advertised struct {
	name  string
	types []string
}

// advertisedConverters reads the supportedConverters property. It accepts a
// list of names, a comma separated string, a map from name to supported type
// names, or a list of {"name": ..., "types": [...]} objects.
func advertisedConverters(v any) []advertised {
	var out []advertised
	switch s := v.(type) {
	case nil:
		return nil
	case string:
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, advertised{name: name})
			}
		}
	case []string:
		for _, name := range s {
			out = append(out, advertised{name: name})
		}
	case []any:
		for _, item := range s {
			switch it := item.(type) {
			case string:
				out = append(out, advertised{name: it})
			case map[string]any:
				name, _ := it["name"].(string)
				if name != "" {
					out = append(out, advertised{name: name, types: stringList(it["types"])})
				}
			}
		}
	case map[string][]string:
		for _, name := range slices.Sorted(maps.Keys(s)) {
			out = append(out, advertised{name: name, types: s[name]})
		}
	case map[string]any:
		for _, name := range slices.Sorted(maps.Keys(s)) {
			out = append(out, advertised{name: name, types: stringList(s[name])})
		}
	}
	return out
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{l}
	}
	return nil
}

func supportsTarget(types []string, c Converter, target reflect.Type) bool {
	if len(types) == 0 {
		if tl, ok := c.(TypeLimited); ok {
			for _, t := range tl.SupportedTypes() {
				if t == target {
					return true
				}
			}
			return len(tl.SupportedTypes()) == 0
		}
		return true
	}
	name := metadata.TypeName(target)
	for _, t := range types {
		if t == name || t == target.String() {
			return true
		}
	}
	return false
}

func fallbackAllowed(props map[string]any) bool {
	switch v := props[metadata.PropAllowConverterFallback].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return true
}
