package converters

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// JSONPocoConverter decodes JSON text into structs, maps, slices and other
// non-string targets. Integer targets accept plain numeric text.
type JSONPocoConverter struct{}

func (JSONPocoConverter) Convert(_ context.Context, cc *Context) Result {
	if cc.TargetType == nil || cc.TargetType == stringType {
		return Unhandled()
	}

	var data []byte
	switch s := cc.Source.(type) {
	case string:
		data = []byte(s)
	case []byte:
		data = s
	default:
		return Unhandled()
	}

	if v, ok := parseIntegral(cc.TargetType, string(data)); ok {
		return Success(v)
	}

	target := reflect.New(cc.TargetType)
	if err := json.Unmarshal(data, target.Interface()); err != nil {
		return Failure(fmt.Errorf("deserialize %s: %w", cc.TargetType, err))
	}
	return Success(target.Elem().Interface())
}

// parseIntegral parses s into an integer target, or a pointer to one.
func parseIntegral(t reflect.Type, s string) (any, bool) {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}

	v := reflect.New(base).Elem()
	switch base.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, base.Bits())
		if err != nil {
			return nil, false
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, base.Bits())
		if err != nil {
			return nil, false
		}
		v.SetUint(n)
	default:
		return nil, false
	}

	if t.Kind() == reflect.Pointer {
		p := reflect.New(base)
		p.Elem().Set(v)
		return p.Interface(), true
	}
	return v.Interface(), true
}
