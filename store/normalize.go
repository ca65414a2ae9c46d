package store

import (
	"fmt"
	"reflect"
	"sort"
)

// Kind is the simplified representable type of a configuration value, the
// granularity at which type changes are detected.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindList   Kind = "list"
	KindMap    Kind = "map"
)

// ErrNotRepresentable marks values that cannot become configuration entries.
type ErrNotRepresentable struct {
	Value any
}

func (e *ErrNotRepresentable) Error() string {
	return fmt.Sprintf("store: value of type %T is not representable as a config entry", e.Value)
}

// Normalize coerces a Go value into normalized configuration form: nil, bool,
// int64, float64, string, []any, or *Map. Unordered Go maps are converted
// with sorted keys so repeated normalization is deterministic. Opaque values
// (funcs, channels, structs, pointers) yield ErrNotRepresentable.
func Normalize(v any) (any, error) {
	switch tv := v.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return tv, nil
	case int:
		return int64(tv), nil
	case int8:
		return int64(tv), nil
	case int16:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case uint:
		return int64(tv), nil
	case uint8:
		return int64(tv), nil
	case uint16:
		return int64(tv), nil
	case uint32:
		return int64(tv), nil
	case uint64:
		if tv > 1<<62 {
			return nil, &ErrNotRepresentable{Value: v}
		}
		return int64(tv), nil
	case float32:
		return float64(tv), nil
	case *Map:
		out := NewMap()
		var err error
		tv.Range(func(key string, value any) bool {
			var nv any
			nv, err = Normalize(value)
			if err != nil {
				return false
			}
			out.Set(key, nv)
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			nv, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, &ErrNotRepresentable{Value: v}
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			nv, err := Normalize(rv.MapIndex(reflect.ValueOf(k)).Interface())
			if err != nil {
				return nil, err
			}
			out.Set(k, nv)
		}
		return out, nil
	}
	return nil, &ErrNotRepresentable{Value: v}
}

// KindOf returns the simplified kind of a normalized value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case []any:
		return KindList
	case *Map:
		return KindMap
	default:
		return Kind(fmt.Sprintf("%T", v))
	}
}

// TypeChangedValue reports whether old and new have different simplified
// kinds. Null is exempt in either direction.
func TypeChangedValue(old, new any) bool {
	if old == nil || new == nil {
		return false
	}
	return KindOf(old) != KindOf(new)
}

// Equal deep-compares two normalized values.
func Equal(a, b any) bool {
	switch av := a.(type) {
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Range(func(key string, value any) bool {
			other, ok := bv.Get(key)
			if !ok || !Equal(value, other) {
				equal = false
				return false
			}
			return true
		})
		return equal
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case int64:
		// numeric equality across int/float, like the summary semantics
		// expect: a type change can coincide with an unchanged value.
		if bf, ok := b.(float64); ok {
			return float64(av) == bf
		}
		return a == b
	case float64:
		if bi, ok := b.(int64); ok {
			return av == float64(bi)
		}
		return a == b
	default:
		return a == b
	}
}
