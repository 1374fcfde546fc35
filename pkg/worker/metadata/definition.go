package metadata

import (
	"fmt"
	"maps"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// ParamInfo describes one parameter of the Go method behind a function.
type ParamInfo struct {
	Name         string
	Type         reflect.Type
	DefaultValue any
	HasDefault   bool
	Properties   map[string]any
}

// MethodSignature is the shape of the method an entry point resolves to.
type MethodSignature struct {
	Params []ParamInfo
	Static bool
}

// FunctionParameter is a parameter of a loaded function.
type FunctionParameter struct {
	Name                  string
	Type                  reflect.Type
	HasDefaultValue       bool
	DefaultValue          any
	IsReferenceOrNullable bool
	Properties            map[string]any
}

// IsOptional reports whether the parameter can be left unbound.
func (p FunctionParameter) IsOptional() bool {
	return p.HasDefaultValue
}

// RetryStrategy mirrors the wire retry strategy.
type RetryStrategy int

const (
	RetryExponentialBackoff RetryStrategy = iota
	RetryFixedDelay
)

// RetryOptions is the retry policy a function declares for the host.
type RetryOptions struct {
	Strategy        RetryStrategy
	MaxRetryCount   int
	DelayInterval   time.Duration
	MinimumInterval time.Duration
	MaximumInterval time.Duration
}

// FunctionDefinition is the immutable description of a loaded function.
type FunctionDefinition struct {
	id             string
	name           string
	entryPoint     string
	pathToAssembly string
	parameters     []FunctionParameter
	inputBindings  map[string]*BindingMetadata
	outputBindings map[string]*BindingMetadata
	retry          *RetryOptions
	static         bool
}

func (d *FunctionDefinition) ID() string             { return d.id }
func (d *FunctionDefinition) Name() string           { return d.name }
func (d *FunctionDefinition) EntryPoint() string     { return d.entryPoint }
func (d *FunctionDefinition) PathToAssembly() string { return d.pathToAssembly }
func (d *FunctionDefinition) Retry() *RetryOptions   { return d.retry }
func (d *FunctionDefinition) IsStatic() bool         { return d.static }

// NumParameters returns the number of parameters in declaration order.
func (d *FunctionDefinition) NumParameters() int { return len(d.parameters) }

// Parameter returns the i-th parameter in declaration order.
func (d *FunctionDefinition) Parameter(i int) FunctionParameter { return d.parameters[i] }

// Parameters returns a copy of the parameter list.
func (d *FunctionDefinition) Parameters() []FunctionParameter {
	return slices.Clone(d.parameters)
}

// ParameterIndex returns the position of the named parameter or -1.
func (d *FunctionDefinition) ParameterIndex(name string) int {
	for i, p := range d.parameters {
		if strings.EqualFold(p.Name, name) {
			return i
		}
	}
	return -1
}

// InputBindings returns a copy of the input binding map.
func (d *FunctionDefinition) InputBindings() map[string]*BindingMetadata {
	return maps.Clone(d.inputBindings)
}

// OutputBindings returns a copy of the output binding map.
func (d *FunctionDefinition) OutputBindings() map[string]*BindingMetadata {
	return maps.Clone(d.outputBindings)
}

// InputBinding looks up an input binding by name, ignoring case.
func (d *FunctionDefinition) InputBinding(name string) (*BindingMetadata, bool) {
	return lookupFold(d.inputBindings, name)
}

// OutputBinding looks up an output binding by name, ignoring case.
func (d *FunctionDefinition) OutputBinding(name string) (*BindingMetadata, bool) {
	return lookupFold(d.outputBindings, name)
}

func lookupFold(m map[string]*BindingMetadata, name string) (*BindingMetadata, bool) {
	if b, ok := m[name]; ok {
		return b, true
	}
	for k, b := range m {
		if strings.EqualFold(k, name) {
			return b, true
		}
	}
	return nil, false
}

// SplitEntryPoint splits "<type>.<method>" at the last dot.
func SplitEntryPoint(entryPoint string) (typeName, method string, err error) {
	idx := strings.LastIndex(entryPoint, ".")
	if idx <= 0 || idx == len(entryPoint)-1 {
		return "", "", fmt.Errorf("invalid entry point %q: the function entry point must be defined in the format <fulltypename>.<methodname>", entryPoint)
	}
	return entryPoint[:idx], entryPoint[idx+1:], nil
}

// PathToAssembly resolves the script file of metadata against its directory.
func PathToAssembly(meta *rpc.RpcFunctionMetadata) string {
	if meta.ScriptFile == "" || filepath.IsAbs(meta.ScriptFile) || meta.Directory == "" {
		return meta.ScriptFile
	}
	return filepath.Join(meta.Directory, meta.ScriptFile)
}

// BuildDefinition builds a definition from wire metadata and the signature of
// the method its entry point resolved to. Binding shape is taken from the
// wire metadata only.
func BuildDefinition(functionID string, meta *rpc.RpcFunctionMetadata, sig MethodSignature) (*FunctionDefinition, error) {
	if meta == nil {
		return nil, &ValidationError{Function: functionID, Reason: "function metadata is missing"}
	}
	if functionID == "" {
		functionID = meta.FunctionId
	}
	if _, _, err := SplitEntryPoint(meta.EntryPoint); err != nil {
		return nil, &ValidationError{Function: meta.Name, Reason: "entry point", Err: err}
	}

	bindings, err := collectBindings(meta)
	if err != nil {
		return nil, err
	}
	if err := validateBindings(meta.Name, bindings); err != nil {
		return nil, err
	}

	retry, err := retryFromWire(meta.Name, meta.RetryOptions)
	if err != nil {
		return nil, err
	}

	def := &FunctionDefinition{
		id:             functionID,
		name:           meta.Name,
		entryPoint:     meta.EntryPoint,
		pathToAssembly: PathToAssembly(meta),
		inputBindings:  map[string]*BindingMetadata{},
		outputBindings: map[string]*BindingMetadata{},
		retry:          retry,
		static:         sig.Static,
	}

	resolved := map[string]*BindingMetadata{}
	for _, p := range sig.Params {
		if p.Type == nil {
			return nil, &ValidationError{Function: meta.Name, Reason: fmt.Sprintf("parameter '%s' has no type", p.Name)}
		}
		props := maps.Clone(p.Properties)
		if props == nil {
			props = map[string]any{}
		}

		if b := findBinding(bindings, p.Name); b != nil && b.Direction() != DirectionOut {
			maps.Copy(props, b.properties)
			cardinality, dataType, err := ResolveCardinality(p.Type, props, b.IsTrigger())
			if err != nil {
				return nil, &ValidationError{
					Function: meta.Name,
					Reason:   fmt.Sprintf("parameter '%s' of type '%s' cannot be bound with cardinality Many", p.Name, TypeName(p.Type)),
					Err:      err,
				}
			}
			if b.dataType != DataTypeUndefined {
				dataType = b.dataType
			}
			resolved[b.name] = b.with(dataType, cardinality)
		}

		def.parameters = append(def.parameters, FunctionParameter{
			Name:                  p.Name,
			Type:                  p.Type,
			HasDefaultValue:       p.HasDefault,
			DefaultValue:          p.DefaultValue,
			IsReferenceOrNullable: IsReferenceOrNullable(p.Type),
			Properties:            props,
		})
	}

	for _, b := range bindings {
		if r, ok := resolved[b.name]; ok {
			b = r
		}
		switch b.direction {
		case DirectionIn:
			def.inputBindings[b.name] = b
		case DirectionOut:
			def.outputBindings[b.name] = b
		case DirectionInOut:
			def.inputBindings[b.name] = b
			def.outputBindings[b.name] = b
		}
	}

	return def, nil
}

// collectBindings merges the structured binding map with the raw binding
// documents. Raw documents carry the property bag; the structured entry wins
// for type, direction and data type.
func collectBindings(meta *rpc.RpcFunctionMetadata) ([]*BindingMetadata, error) {
	var out []*BindingMetadata
	seen := map[string]int{}

	for _, raw := range meta.RawBindings {
		b, err := ParseBinding([]byte(raw))
		if err != nil {
			return nil, &ValidationError{Function: meta.Name, Reason: "invalid binding", Err: err}
		}
		key := strings.ToLower(b.name) + "/" + b.direction.String()
		if _, dup := seen[key]; dup {
			return nil, &ValidationError{
				Function: meta.Name,
				Reason:   fmt.Sprintf("multiple %s bindings named '%s'", strings.ToLower(b.direction.String()), b.name),
			}
		}
		seen[key] = len(out)
		out = append(out, b)
	}

	names := slices.Sorted(maps.Keys(meta.Bindings))
	for _, name := range names {
		info := meta.Bindings[name]
		if info == nil {
			continue
		}
		direction := DirectionFromWire(info.Direction)
		dataType := DataType(info.DataType)

		if idx := findRaw(out, name); idx >= 0 {
			b := out[idx]
			b.bindingType = info.Type
			if b.direction != direction {
				b.direction = direction
				b.normalize()
			}
			if dataType != DataTypeUndefined {
				b.dataType = dataType
			}
			continue
		}

		props := make(map[string]any, len(info.Properties))
		for k, v := range info.Properties {
			props[k] = v
		}
		b := NewBinding(name, info.Type, direction, props)
		b.dataType = dataType
		out = append(out, b)
	}
	return out, nil
}

func findRaw(bindings []*BindingMetadata, name string) int {
	for i, b := range bindings {
		if strings.EqualFold(b.name, name) {
			return i
		}
	}
	return -1
}

func findBinding(bindings []*BindingMetadata, name string) *BindingMetadata {
	var out *BindingMetadata
	for _, b := range bindings {
		if !strings.EqualFold(b.name, name) {
			continue
		}
		if b.direction != DirectionOut {
			return b
		}
		out = b
	}
	return out
}

func retryFromWire(function string, opts *rpc.RpcRetryOptions) (*RetryOptions, error) {
	if opts == nil {
		return nil, nil
	}
	r := &RetryOptions{
		MaxRetryCount:   int(opts.MaxRetryCount),
		DelayInterval:   opts.DelayInterval.AsDuration(),
		MinimumInterval: opts.MinimumInterval.AsDuration(),
		MaximumInterval: opts.MaximumInterval.AsDuration(),
	}
	if opts.RetryStrategy == rpc.RetryFixedDelay {
		r.Strategy = RetryFixedDelay
	}
	if err := validateRetry(function, r); err != nil {
		return nil, err
	}
	return r, nil
}
