package rpc

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// KeyAt extracts the correlation key stored at index in args.
//
// Numeric keys are normalized: integral values of any numeric type (including
// json.Number and float64 produced by the wire codec) become int64, other
// numbers become float64. This keeps a key sent as int 7 equal to the same key
// echoed back by the broker as "7" decoded from JSON.
func KeyAt(args Args, index int) (interface{}, error) {
	if index < 0 || index >= len(args) {
		return nil, fmt.Errorf("%w: index %d, %d args", ErrMissingKey, index, len(args))
	}
	key := normalizeKey(args[index])
	if key != nil && !reflect.TypeOf(key).Comparable() {
		return nil, fmt.Errorf("%w: %T", ErrUnhashableKey, key)
	}
	return key, nil
}

func normalizeKey(v interface{}) interface{} {
	switch k := v.(type) {
	case int:
		return int64(k)
	case int8:
		return int64(k)
	case int16:
		return int64(k)
	case int32:
		return int64(k)
	case int64:
		return k
	case uint:
		return fromUnsigned(uint64(k))
	case uint8:
		return int64(k)
	case uint16:
		return int64(k)
	case uint32:
		return int64(k)
	case uint64:
		return fromUnsigned(k)
	case float32:
		return fromFloat(float64(k))
	case float64:
		return fromFloat(k)
	case json.Number:
		if i, err := k.Int64(); err == nil {
			return i
		}
		if f, err := k.Float64(); err == nil {
			return fromFloat(f)
		}
		return k.String()
	}
	return v
}

func fromUnsigned(u uint64) interface{} {
	if u > math.MaxInt64 {
		return u
	}
	return int64(u)
}

func fromFloat(f float64) interface{} {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 can't hold.
	if f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63 {
		return int64(f)
	}
	return f
}
