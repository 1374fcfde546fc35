package converters

import (
	"context"
	"fmt"
	"reflect"
)

// ArrayConverter converts batched wire collections into slice and array
// targets by converting each element through the default chain.
type ArrayConverter struct {
	provider *Provider
}

func NewArrayConverter(p *Provider) *ArrayConverter {
	return &ArrayConverter{provider: p}
}

func (a *ArrayConverter) Convert(ctx context.Context, cc *Context) Result {
	target := cc.TargetType
	if target == nil || target == bytesType || target == byteMemoryType {
		return Unhandled()
	}
	if target.Kind() != reflect.Slice && target.Kind() != reflect.Array {
		return Unhandled()
	}

	src, ok := collectionSource(cc.Source)
	if !ok {
		return Unhandled()
	}
	if target.Kind() == reflect.Array && target.Len() != src.Len() {
		return Failure(fmt.Errorf("cannot bind %d items to %s", src.Len(), target))
	}

	var out reflect.Value
	if target.Kind() == reflect.Slice {
		out = reflect.MakeSlice(target, src.Len(), src.Len())
	} else {
		out = reflect.New(target).Elem()
	}

	engine := &Engine{provider: a.provider}
	elemType := target.Elem()
	for i := range src.Len() {
		r := engine.Convert(ctx, &Context{
			TargetType:      elemType,
			Source:          src.Index(i).Interface(),
			FunctionContext: cc.FunctionContext,
		})
		switch r.Status() {
		case StatusFailed:
			return Failure(fmt.Errorf("element %d: %w", i, r.Err()))
		case StatusUnhandled:
			return Unhandled()
		}
		if r.Value() == nil {
			continue
		}
		v := reflect.ValueOf(r.Value())
		if !v.Type().AssignableTo(elemType) {
			return Failure(fmt.Errorf("element %d: converted %s is not assignable to %s", i, v.Type(), elemType))
		}
		out.Index(i).Set(v)
	}
	return Success(out.Interface())
}

func collectionSource(v any) (reflect.Value, bool) {
	switch v.(type) {
	case []string, [][]byte, []float64, []int64, []any:
		return reflect.ValueOf(v), true
	}
	return reflect.Value{}, false
}
