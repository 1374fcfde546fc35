package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ByteMemory is the designated contiguous byte type. Parameters of this type
// are classified as Binary, like []byte.
type ByteMemory []byte

// enumerableMethod names the iterator contract recognized when resolving the
// element type of a batched parameter. A type satisfies it when its method
// set, including methods promoted from embedded fields, has All() iter.Seq[T].
//
//	type Batch struct{ items []string }
//	func (b Batch) All() iter.Seq[string] { ... }
const enumerableMethod = "All"

// ErrInvalidCardinality is returned when a batched binding targets a type that
// cannot hold a batch.
var ErrInvalidCardinality = errors.New("invalid cardinality")

var (
	stringType     = reflect.TypeOf("")
	bytesType      = reflect.TypeOf([]byte(nil))
	bytesSliceType = reflect.TypeOf([][]byte(nil))
	byteMemoryType = reflect.TypeOf(ByteMemory(nil))
)

// DataTypeOf classifies t structurally.
func DataTypeOf(t reflect.Type) DataType {
	if t == nil {
		return DataTypeUndefined
	}
	t = derefPointer(t)
	switch t {
	case stringType:
		return DataTypeString
	case bytesType, bytesSliceType, byteMemoryType:
		return DataTypeBinary
	}
	return DataTypeUndefined
}

// IsBytes reports whether t is a byte slice or the designated byte memory type.
func IsBytes(t reflect.Type) bool {
	return t == bytesType || t == byteMemoryType
}

// IsReferenceOrNullable reports whether the zero value of t is nil.
func IsReferenceOrNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// ResolveCardinality determines the cardinality of a parameter and the data
// type of the values the host must send for it.
//
// The batching decision is taken from props in priority order: the isBatched
// named argument, then the cardinality attribute default. With neither
// present, trigger bindings whose type is a collection are batched and
// everything else is One.
func ResolveCardinality(t reflect.Type, props map[string]any, trigger bool) (Cardinality, DataType, error) {
	many, explicit := batchingFlag(props)
	if !explicit {
		if !trigger || IsBytes(t) {
			return CardinalityOne, DataTypeOf(t), nil
		}
		elem, err := ElementType(t)
		if err != nil {
			return CardinalityOne, DataTypeOf(t), nil
		}
		return CardinalityMany, DataTypeOf(elem), nil
	}

	if !many {
		return CardinalityOne, DataTypeOf(t), nil
	}

	elem, err := ElementType(t)
	if err != nil {
		return CardinalityOne, DataTypeUndefined, err
	}
	return CardinalityMany, DataTypeOf(elem), nil
}

func batchingFlag(props map[string]any) (many bool, explicit bool) {
	if v, ok := props[PropIsBatched]; ok {
		if b, ok := asBool(v); ok {
			return b, true
		}
	}
	if v, ok := props[PropCardinality]; ok {
		if s, ok := v.(string); ok {
			if c, err := ParseCardinality(s); err == nil {
				return c == CardinalityMany, true
			}
		}
		if c, ok := v.(Cardinality); ok {
			return c == CardinalityMany, true
		}
	}
	return false, false
}

// ElementType returns the element type of a collection type t, walking method
// sets for the Enumerable contract. Byte slices, strings, and mapping-shaped
// types are not collections.
func ElementType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidCardinality)
	}
	if IsBytes(t) {
		return nil, fmt.Errorf("%w: %s is a single binary value", ErrInvalidCardinality, t)
	}

	switch t.Kind() {
	case reflect.Array, reflect.Slice:
		return t.Elem(), nil
	case reflect.Map:
		return nil, fmt.Errorf("%w: mapping type %s cannot be bound as a batch", ErrInvalidCardinality, t)
	case reflect.String:
		return nil, fmt.Errorf("%w: %s is not a collection", ErrInvalidCardinality, t)
	case reflect.Chan:
		if t.ChanDir()&reflect.RecvDir != 0 {
			return t.Elem(), nil
		}
	case reflect.Func:
		if elem, pairs, ok := seqElem(t); ok {
			if pairs {
				return nil, fmt.Errorf("%w: key/value sequence %s cannot be bound as a batch", ErrInvalidCardinality, t)
			}
			return elem, nil
		}
	}

	if elem, ok, err := enumerableElem(t); ok {
		return elem, err
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		if elem, ok, err := enumerableElem(reflect.PointerTo(t)); ok {
			return elem, err
		}
	}

	return nil, fmt.Errorf("%w: %s is not a collection type", ErrInvalidCardinality, t)
}

// enumerableElem looks for All() returning a sequence on t's method set.
func enumerableElem(t reflect.Type) (reflect.Type, bool, error) {
	m, ok := t.MethodByName(enumerableMethod)
	if !ok {
		return nil, false, nil
	}
	// Method types obtained from a non-interface type include the receiver.
	ft := m.Type
	in := ft.NumIn()
	if t.Kind() != reflect.Interface {
		in--
	}
	if in != 0 || ft.NumOut() != 1 {
		return nil, false, nil
	}
	elem, pairs, ok := seqElem(ft.Out(0))
	if !ok {
		return nil, false, nil
	}
	if pairs {
		return nil, true, fmt.Errorf("%w: %s enumerates key/value pairs", ErrInvalidCardinality, t)
	}
	return elem, true, nil
}

// seqElem matches func(yield func(T) bool) and func(yield func(K, V) bool).
func seqElem(t reflect.Type) (elem reflect.Type, pairs bool, ok bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false, false
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumOut() != 1 || yield.Out(0).Kind() != reflect.Bool {
		return nil, false, false
	}
	switch yield.NumIn() {
	case 1:
		return yield.In(0), false, true
	case 2:
		return nil, true, true
	}
	return nil, false, false
}

func derefPointer(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// TypeName returns the qualified name used in diagnostics and converter hints.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(b) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
