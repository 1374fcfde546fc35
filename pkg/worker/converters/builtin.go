package converters

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/function"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

var (
	functionContextType = reflect.TypeFor[*function.Context]()
	goContextType       = reflect.TypeFor[context.Context]()
	uuidType            = reflect.TypeFor[uuid.UUID]()
	timeType            = reflect.TypeFor[time.Time]()
	stringType          = reflect.TypeFor[string]()
	bytesType           = reflect.TypeFor[[]byte]()
	byteMemoryType      = reflect.TypeFor[metadata.ByteMemory]()
)

// IsContextType reports whether t is populated from the invocation itself.
func IsContextType(t reflect.Type) bool {
	return t == functionContextType || t == goContextType
}

// FunctionContextConverter supplies the invocation to *function.Context and
// context.Context parameters.
type FunctionContextConverter struct{}

func (FunctionContextConverter) Convert(_ context.Context, cc *Context) Result {
	if cc.FunctionContext == nil {
		return Unhandled()
	}
	switch cc.TargetType {
	case functionContextType:
		return Success(cc.FunctionContext)
	case goContextType:
		return Success(function.NewGoContext(cc.FunctionContext.Context(), cc.FunctionContext))
	}
	return Unhandled()
}

// TypeConverter passes through sources that already fit the target. Numeric
// sources are converted between numeric kinds when the value fits.
type TypeConverter struct{}

func (TypeConverter) Convert(_ context.Context, cc *Context) Result {
	if cc.Source == nil || cc.TargetType == nil {
		return Unhandled()
	}
	sv := reflect.ValueOf(cc.Source)
	st := sv.Type()

	if st.AssignableTo(cc.TargetType) {
		if st == cc.TargetType || cc.TargetType.Kind() == reflect.Interface {
			return Success(cc.Source)
		}
		return Success(sv.Convert(cc.TargetType).Interface())
	}
	if cc.TargetType.Kind() == reflect.Pointer && st.AssignableTo(cc.TargetType.Elem()) {
		p := reflect.New(cc.TargetType.Elem())
		p.Elem().Set(sv)
		return Success(p.Interface())
	}
	if isNumeric(st.Kind()) && isNumeric(cc.TargetType.Kind()) {
		out, ok := ConvertNumber(sv, cc.TargetType)
		if !ok {
			return Failure(fmt.Errorf("%v does not fit in %s", cc.Source, cc.TargetType))
		}
		return Success(out.Interface())
	}
	return Unhandled()
}

// GuidConverter parses uuid.UUID values from strings and bytes.
type GuidConverter struct{}

func (GuidConverter) SupportedTypes() []reflect.Type { return []reflect.Type{uuidType} }

func (GuidConverter) Convert(_ context.Context, cc *Context) Result {
	if cc.TargetType != uuidType {
		return Unhandled()
	}
	var (
		id  uuid.UUID
		err error
	)
	switch s := cc.Source.(type) {
	case string:
		id, err = uuid.Parse(s)
	case []byte:
		if len(s) == 16 {
			id, err = uuid.FromBytes(s)
		} else {
			id, err = uuid.ParseBytes(s)
		}
	default:
		return Unhandled()
	}
	if err != nil {
		return Unhandled()
	}
	return Success(id)
}

// dateLayouts are tried in order by DateTimeConverter.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"01-02-2006",
	"15:04:05",
	"15:04",
	"3:04 PM",
}

// DateTimeConverter parses time.Time values from strings.
type DateTimeConverter struct{}

func (DateTimeConverter) SupportedTypes() []reflect.Type { return []reflect.Type{timeType} }

func (DateTimeConverter) Convert(_ context.Context, cc *Context) Result {
	if cc.TargetType != timeType {
		return Unhandled()
	}
	var s string
	switch src := cc.Source.(type) {
	case string:
		s = src
	case []byte:
		s = string(src)
	default:
		return Unhandled()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Success(t)
		}
	}
	return Unhandled()
}

// MemoryConverter turns binary sources into string or ByteMemory targets.
type MemoryConverter struct{}

func (MemoryConverter) Convert(_ context.Context, cc *Context) Result {
	b, ok := cc.Source.([]byte)
	if !ok {
		if m, isMem := cc.Source.(metadata.ByteMemory); isMem {
			b, ok = m, true
		}
	}
	if !ok {
		return Unhandled()
	}
	switch cc.TargetType {
	case stringType:
		return Success(string(b))
	case bytesType:
		return Success([]byte(b))
	case byteMemoryType:
		return Success(metadata.ByteMemory(b))
	}
	return Unhandled()
}

// StringToByteConverter turns string sources into byte targets.
type StringToByteConverter struct{}

func (StringToByteConverter) Convert(_ context.Context, cc *Context) Result {
	s, ok := cc.Source.(string)
	if !ok {
		return Unhandled()
	}
	switch cc.TargetType {
	case bytesType:
		return Success([]byte(s))
	case byteMemoryType:
		return Success(metadata.ByteMemory(s))
	}
	return Unhandled()
}
