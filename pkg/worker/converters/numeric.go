package converters

import (
	"math"
	"reflect"
)

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// ConvertNumber converts v to the numeric type t when the value survives the
// conversion. It reports false for a fraction or a non-finite float headed for
// an integer, and for anything outside the target's range. Integers converted
// to floats may round.
func ConvertNumber(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if !isNumeric(v.Kind()) || !isNumeric(t.Kind()) {
		return reflect.Value{}, false
	}
	out := reflect.New(t).Elem()

	switch {
	case v.CanInt():
		i := v.Int()
		switch {
		case out.CanInt():
			if out.OverflowInt(i) {
				return reflect.Value{}, false
			}
			out.SetInt(i)
		case out.CanUint():
			if i < 0 || out.OverflowUint(uint64(i)) {
				return reflect.Value{}, false
			}
			out.SetUint(uint64(i))
		default:
			out.SetFloat(float64(i))
		}

	case v.CanUint():
		u := v.Uint()
		switch {
		case out.CanInt():
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return reflect.Value{}, false
			}
			out.SetInt(int64(u))
		case out.CanUint():
			if out.OverflowUint(u) {
				return reflect.Value{}, false
			}
			out.SetUint(u)
		default:
			out.SetFloat(float64(u))
		}

	default:
		f := v.Float()
		finite := !math.IsNaN(f) && !math.IsInf(f, 0)
		switch {
		case out.CanInt():
			if !finite || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return reflect.Value{}, false
			}
			if out.OverflowInt(int64(f)) {
				return reflect.Value{}, false
			}
			out.SetInt(int64(f))
		case out.CanUint():
			if !finite || f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return reflect.Value{}, false
			}
			if out.OverflowUint(uint64(f)) {
				return reflect.Value{}, false
			}
			out.SetUint(uint64(f))
		default:
			if finite && out.OverflowFloat(f) {
				return reflect.Value{}, false
			}
			out.SetFloat(f)
		}
	}
	return out, true
}
