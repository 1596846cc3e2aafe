package datamodel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValType tags the representation of a raw attribute value.
type ValType uint8

// Attribute value types. The numbering follows the substrate's value-type
// enumeration; nullable variants reserve one in-range sentinel for null.
const (
	ValInvalid        ValType = 0x00
	ValBool           ValType = 0x01
	ValFloat          ValType = 0x02
	ValCharString     ValType = 0x03
	ValOctetString    ValType = 0x04
	ValInt8           ValType = 0x05
	ValUint8          ValType = 0x06
	ValInt16          ValType = 0x07
	ValUint16         ValType = 0x08
	ValInt32          ValType = 0x09
	ValUint32         ValType = 0x0A
	ValInt64          ValType = 0x0B
	ValUint64         ValType = 0x0C
	ValEnum8          ValType = 0x0D
	ValBitmap8        ValType = 0x0E
	ValBitmap16       ValType = 0x0F
	ValBitmap32       ValType = 0x10
	ValNullableUint8  ValType = 0x86
	ValNullableInt16  ValType = 0x87
	ValNullableUint16 ValType = 0x88
)

// Null sentinels for nullable types.
const (
	nullUint8  = math.MaxUint8
	nullInt16  = math.MinInt16
	nullUint16 = math.MaxUint16
)

// Nullable reports whether t reserves a null sentinel.
func (t ValType) Nullable() bool {
	return t&0x80 != 0
}

// Base strips the nullable flag.
func (t ValType) Base() ValType {
	return t &^ 0x80
}

// Size returns the encoded size of t in bytes, or -1 for length-prefixed types.
func (t ValType) Size() int {
	switch t.Base() {
	case ValBool, ValInt8, ValUint8, ValEnum8, ValBitmap8:
		return 1
	case ValInt16, ValUint16, ValBitmap16:
		return 2
	case ValInt32, ValUint32, ValBitmap32, ValFloat:
		return 4
	case ValInt64, ValUint64:
		return 8
	default:
		return -1
	}
}

func (t ValType) String() string {
	var name string
	switch t.Base() {
	case ValBool:
		name = "bool"
	case ValFloat:
		name = "float"
	case ValCharString:
		name = "string"
	case ValOctetString:
		name = "octstr"
	case ValInt8:
		name = "int8"
	case ValUint8:
		name = "uint8"
	case ValInt16:
		name = "int16"
	case ValUint16:
		name = "uint16"
	case ValInt32:
		name = "int32"
	case ValUint32:
		name = "uint32"
	case ValInt64:
		name = "int64"
	case ValUint64:
		name = "uint64"
	case ValEnum8:
		name = "enum8"
	case ValBitmap8:
		name = "map8"
	case ValBitmap16:
		name = "map16"
	case ValBitmap32:
		name = "map32"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
	if t.Nullable() {
		return "nullable " + name
	}
	return name
}

// Encode converts a Go value into the little-endian representation of t.
// A nil value encodes the null sentinel of a nullable type.
func Encode(t ValType, val any) ([]byte, error) {
	if val == nil {
		return encodeNull(t)
	}
	switch t.Base() {
	case ValBool:
		v, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("datamodel: cannot convert %T to bool", val)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case ValUint8, ValEnum8, ValBitmap8:
		v, err := unsignedIn(val, math.MaxUint8, t)
		if err != nil {
			return nil, err
		}
		if t == ValNullableUint8 && v == nullUint8 {
			return nil, fmt.Errorf("datamodel: %d is the null sentinel of %s", v, t)
		}
		return []byte{uint8(v)}, nil

	case ValUint16, ValBitmap16:
		v, err := unsignedIn(val, math.MaxUint16, t)
		if err != nil {
			return nil, err
		}
		if t == ValNullableUint16 && v == nullUint16 {
			return nil, fmt.Errorf("datamodel: %d is the null sentinel of %s", v, t)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(v)), nil

	case ValUint32, ValBitmap32:
		v, err := unsignedIn(val, math.MaxUint32, t)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(v)), nil

	case ValUint64:
		v, err := unsignedIn(val, math.MaxUint64, t)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(nil, v), nil

	case ValInt8:
		v, err := signedIn(val, math.MinInt8, math.MaxInt8, t)
		if err != nil {
			return nil, err
		}
		return []byte{byte(int8(v))}, nil

	case ValInt16:
		v, err := signedIn(val, math.MinInt16, math.MaxInt16, t)
		if err != nil {
			return nil, err
		}
		if t == ValNullableInt16 && v == nullInt16 {
			return nil, fmt.Errorf("datamodel: %d is the null sentinel of %s", v, t)
		}
		return binary.LittleEndian.AppendUint16(nil, uint16(int16(v))), nil

	case ValInt32:
		v, err := signedIn(val, math.MinInt32, math.MaxInt32, t)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint32(nil, uint32(int32(v))), nil

	case ValInt64:
		v, err := signedIn(val, math.MinInt64, math.MaxInt64, t)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint64(nil, uint64(v)), nil

	case ValFloat:
		v, ok := toFloat64(val)
		if !ok {
			return nil, fmt.Errorf("datamodel: cannot convert %T to float", val)
		}
		return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(v))), nil

	case ValCharString:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("datamodel: cannot convert %T to string", val)
		}
		return lengthPrefixed([]byte(s))
	case ValOctetString:
		b, ok := val.([]byte)
		if !ok {
			return nil, fmt.Errorf("datamodel: cannot convert %T to []byte", val)
		}
		return lengthPrefixed(b)
	}
	return nil, fmt.Errorf("datamodel: encode not implemented for type %s", t)
}

func encodeNull(t ValType) ([]byte, error) {
	switch t {
	case ValNullableUint8:
		return []byte{nullUint8}, nil
	case ValNullableInt16:
		return binary.LittleEndian.AppendUint16(nil, uint16(0x8000)), nil
	case ValNullableUint16:
		return binary.LittleEndian.AppendUint16(nil, nullUint16), nil
	}
	return nil, fmt.Errorf("datamodel: type %s is not nullable", t)
}

func lengthPrefixed(b []byte) ([]byte, error) {
	if len(b) > 254 {
		return nil, fmt.Errorf("datamodel: string too long: %d (max 254)", len(b))
	}
	buf := make([]byte, 1+len(b))
	buf[0] = uint8(len(b))
	copy(buf[1:], b)
	return buf, nil
}

// Decode converts raw bytes of type t back into a Go value. Null sentinels
// of nullable types decode to nil.
func Decode(t ValType, data []byte) (any, error) {
	if size := t.Size(); size > 0 && len(data) < size {
		return nil, fmt.Errorf("datamodel: not enough data for %s: need %d, have %d", t, size, len(data))
	}
	switch t {
	case ValNullableUint8:
		if data[0] == nullUint8 {
			return nil, nil
		}
	case ValNullableInt16:
		if int16(binary.LittleEndian.Uint16(data)) == nullInt16 {
			return nil, nil
		}
	case ValNullableUint16:
		if binary.LittleEndian.Uint16(data) == nullUint16 {
			return nil, nil
		}
	}

	switch t.Base() {
	case ValBool:
		return data[0] != 0, nil
	case ValUint8, ValEnum8, ValBitmap8:
		return data[0], nil
	case ValInt8:
		return int8(data[0]), nil
	case ValUint16, ValBitmap16:
		return binary.LittleEndian.Uint16(data), nil
	case ValInt16:
		return int16(binary.LittleEndian.Uint16(data)), nil
	case ValUint32, ValBitmap32:
		return binary.LittleEndian.Uint32(data), nil
	case ValInt32:
		return int32(binary.LittleEndian.Uint32(data)), nil
	case ValUint64:
		return binary.LittleEndian.Uint64(data), nil
	case ValInt64:
		return int64(binary.LittleEndian.Uint64(data)), nil
	case ValFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(data)), nil
	case ValCharString, ValOctetString:
		if len(data) < 1 {
			return nil, fmt.Errorf("datamodel: no length byte for %s", t)
		}
		n := int(data[0])
		if len(data) < 1+n {
			return nil, fmt.Errorf("datamodel: %s truncated: need %d, have %d", t, n, len(data)-1)
		}
		if t.Base() == ValCharString {
			return string(data[1 : 1+n]), nil
		}
		b := make([]byte, n)
		copy(b, data[1:1+n])
		return b, nil
	}
	return nil, fmt.Errorf("datamodel: decode not implemented for type %s", t)
}

func unsignedIn(val any, max uint64, t ValType) (uint64, error) {
	v, ok := toUint64(val)
	if !ok {
		return 0, fmt.Errorf("datamodel: cannot convert %T to %s", val, t)
	}
	if v > max {
		return 0, fmt.Errorf("datamodel: value %d overflows %s (max %d)", v, t, max)
	}
	return v, nil
}

func signedIn(val any, min, max int64, t ValType) (int64, error) {
	v, ok := toInt64(val)
	if !ok {
		return 0, fmt.Errorf("datamodel: cannot convert %T to %s", val, t)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("datamodel: value %d overflows %s (range %d..%d)", v, t, min, max)
	}
	return v, nil
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int, int8, int16, int32, int64:
		i, _ := toInt64(val)
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	case float64:
		if val < 0 || val != math.Trunc(val) {
			return 0, false
		}
		return uint64(val), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case int:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	case float64:
		if val > math.MaxInt64 || val < math.MinInt64 || val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
