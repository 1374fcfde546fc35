// Package metadata describes loaded functions: their bindings, parameters, and
// the structural rules that tie parameter types to binding shapes.
package metadata

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/rpc"
)

// Well-known binding and parameter property keys.
const (
	PropSupportsDeferredBinding = "supportsDeferredBinding"
	PropIsBatched               = "isBatched"
	PropCardinality             = "cardinality"
	PropConverterType           = "converterType"
	PropAllowConverterFallback  = "allowConverterFallback"
	PropSupportedConverters     = "supportedConverters"
	PropBindingAttribute        = "bindingAttribute"
)

// ReturnBindingName is the output binding that receives the function result.
const ReturnBindingName = "$return"

// Direction is the flow of data through a binding.
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
	DirectionInOut
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "In"
	case DirectionOut:
		return "Out"
	case DirectionInOut:
		return "InOut"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts "in", "out" and "inout" in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return DirectionIn, nil
	case "out":
		return DirectionOut, nil
	case "inout":
		return DirectionInOut, nil
	}
	return DirectionIn, fmt.Errorf("unknown binding direction %q", s)
}

// DirectionFromWire maps the wire enum.
func DirectionFromWire(d rpc.BindingDirection) Direction {
	switch d {
	case rpc.DirectionOut:
		return DirectionOut
	case rpc.DirectionInOut:
		return DirectionInOut
	default:
		return DirectionIn
	}
}

// DataType is the coarse wire classification of a binding payload. Values
// match the wire enum.
type DataType int

const (
	DataTypeUndefined DataType = iota
	DataTypeString
	DataTypeBinary
	DataTypeStream
)

func (d DataType) String() string {
	switch d {
	case DataTypeString:
		return "String"
	case DataTypeBinary:
		return "Binary"
	case DataTypeStream:
		return "Stream"
	default:
		return "Undefined"
	}
}

// ParseDataType accepts the names produced by String in any case. The empty
// string is Undefined.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(s) {
	case "", "undefined":
		return DataTypeUndefined, nil
	case "string":
		return DataTypeString, nil
	case "binary":
		return DataTypeBinary, nil
	case "stream":
		return DataTypeStream, nil
	}
	return DataTypeUndefined, fmt.Errorf("unknown data type %q", s)
}

// Wire returns the wire enum value.
func (d DataType) Wire() rpc.BindingDataType {
	return rpc.BindingDataType(d)
}

// Cardinality is whether a binding carries one item or a batch.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "Many"
	}
	return "One"
}

func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(s) {
	case "one":
		return CardinalityOne, nil
	case "many":
		return CardinalityMany, nil
	}
	return CardinalityOne, fmt.Errorf("unknown cardinality %q", s)
}

// BindingMetadata is the immutable description of one declared binding.
type BindingMetadata struct {
	name        string
	bindingType string
	direction   Direction
	dataType    DataType
	cardinality Cardinality
	properties  map[string]any
	raw         json.RawMessage
}

// NewBinding creates binding metadata from already parsed parts.
func NewBinding(name, bindingType string, direction Direction, properties map[string]any) *BindingMetadata {
	b := &BindingMetadata{
		name:        name,
		bindingType: bindingType,
		direction:   direction,
		properties:  maps.Clone(properties),
	}
	if b.properties == nil {
		b.properties = map[string]any{}
	}
	b.normalize()
	return b
}

// core keys of a raw binding; everything else lands in the property bag.
var coreBindingKeys = map[string]bool{
	"name":       true,
	"type":       true,
	"direction":  true,
	"dataType":   true,
	"properties": true,
}

// ParseBinding parses and validates one raw binding JSON document as sent in
// RpcFunctionMetadata.RawBindings or functions.metadata.
func ParseBinding(raw []byte) (*BindingMetadata, error) {
	if err := validateBinding(raw); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse binding: %w", err)
	}

	name, _ := doc["name"].(string)
	bindingType, _ := doc["type"].(string)
	dirStr, _ := doc["direction"].(string)
	direction, err := ParseDirection(dirStr)
	if err != nil {
		return nil, err
	}

	b := &BindingMetadata{
		name:        name,
		bindingType: bindingType,
		direction:   direction,
		properties:  map[string]any{},
		raw:         append(json.RawMessage(nil), raw...),
	}

	if dt, ok := doc["dataType"].(string); ok {
		if b.dataType, err = ParseDataType(dt); err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
	}

	for k, v := range doc {
		if !coreBindingKeys[k] {
			b.properties[k] = v
		}
	}
	if nested, ok := doc["properties"].(map[string]any); ok {
		for k, v := range nested {
			b.properties[k] = v
		}
	}

	b.normalize()
	return b, nil
}

// normalize derives typed fields from the property bag and applies the
// deferred binding rule: only In bindings may carry supportsDeferredBinding.
func (b *BindingMetadata) normalize() {
	if v, ok := b.properties[PropCardinality]; ok {
		if s, ok := v.(string); ok {
			if c, err := ParseCardinality(s); err == nil {
				b.cardinality = c
			}
		}
	}
	if v, ok := b.properties[PropIsBatched]; ok {
		if many, ok := asBool(v); ok {
			b.cardinality = CardinalityOne
			if many {
				b.cardinality = CardinalityMany
			}
		}
	}

	v, ok := b.properties[PropSupportsDeferredBinding]
	if !ok {
		return
	}
	if b.direction != DirectionIn {
		delete(b.properties, PropSupportsDeferredBinding)
		return
	}
	if on, ok := asBool(v); ok && on {
		b.properties[PropSupportsDeferredBinding] = true
	} else {
		delete(b.properties, PropSupportsDeferredBinding)
	}
}

// with returns a copy carrying the resolved data type and cardinality.
func (b *BindingMetadata) with(dataType DataType, cardinality Cardinality) *BindingMetadata {
	c := *b
	c.properties = maps.Clone(b.properties)
	c.dataType = dataType
	c.cardinality = cardinality
	return &c
}

func (b *BindingMetadata) Name() string             { return b.name }
func (b *BindingMetadata) Type() string             { return b.bindingType }
func (b *BindingMetadata) Direction() Direction     { return b.direction }
func (b *BindingMetadata) DataType() DataType       { return b.dataType }
func (b *BindingMetadata) Cardinality() Cardinality { return b.cardinality }
func (b *BindingMetadata) Raw() json.RawMessage     { return b.raw }

// Properties returns a copy of the property bag.
func (b *BindingMetadata) Properties() map[string]any {
	return maps.Clone(b.properties)
}

// Property returns a single property.
func (b *BindingMetadata) Property(key string) (any, bool) {
	v, ok := b.properties[key]
	return v, ok
}

// IsTrigger reports whether the binding is the function trigger.
func (b *BindingMetadata) IsTrigger() bool {
	return b.direction == DirectionIn && strings.HasSuffix(strings.ToLower(b.bindingType), "trigger")
}

// SupportsDeferredBinding reports whether the binding opted into deferred
// binding. It is never true for output bindings.
func (b *BindingMetadata) SupportsDeferredBinding() bool {
	v, _ := b.properties[PropSupportsDeferredBinding].(bool)
	return v
}

func (b *BindingMetadata) String() string {
	return fmt.Sprintf("%s(%s, %s)", b.name, b.bindingType, b.direction)
}
