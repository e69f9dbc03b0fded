package matter

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// ValueType identifies the active member of a Value.
type ValueType uint8

// Attribute value types. The numeric IDs follow the Matter TLV element
// types closely enough to be recognisable in persisted data.
const (
	TypeInvalid ValueType = 0x00
	TypeBool    ValueType = 0x10
	TypeUint8   ValueType = 0x20
	TypeUint16  ValueType = 0x21
	TypeInt16   ValueType = 0x29
	TypeInt     ValueType = 0x2B
	TypeFloat   ValueType = 0x39
	TypeString  ValueType = 0x42
)

// TypeName returns a human-readable name for a value type.
func TypeName(t ValueType) string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeBool:
		return "bool"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeInt16:
		return "int16"
	case TypeInt:
		return "int32"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("0x%02X", uint8(t))
	}
}

func (t ValueType) String() string { return TypeName(t) }

// Value is a typed attribute value. Only the field selected by Type is meaningful.
type Value struct {
	Type   ValueType
	Bool   bool
	Int    int32
	Float  float32
	Uint8  uint8
	Uint16 uint16
	Int16  int16
	Str    string
}

func Invalid() Value        { return Value{Type: TypeInvalid} }
func Bool(b bool) Value     { return Value{Type: TypeBool, Bool: b} }
func Int(i int32) Value     { return Value{Type: TypeInt, Int: i} }
func Float(f float32) Value { return Value{Type: TypeFloat, Float: f} }
func Uint8(u uint8) Value   { return Value{Type: TypeUint8, Uint8: u} }
func Uint16(u uint16) Value { return Value{Type: TypeUint16, Uint16: u} }
func Int16(i int16) Value   { return Value{Type: TypeInt16, Int16: i} }
func String(s string) Value { return Value{Type: TypeString, Str: s} }

// IsValid reports whether v carries a value.
func (v Value) IsValid() bool { return v.Type != TypeInvalid }

// Int64 returns the value widened to int64 for integer and bool types.
func (v Value) Int64() (int64, bool) {
	switch v.Type {
	case TypeBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case TypeUint8:
		return int64(v.Uint8), true
	case TypeUint16:
		return int64(v.Uint16), true
	case TypeInt16:
		return int64(v.Int16), true
	case TypeInt:
		return int64(v.Int), true
	}
	return 0, false
}

// Float64 returns the value as float64 for every numeric type.
func (v Value) Float64() (float64, bool) {
	if v.Type == TypeFloat {
		return float64(v.Float), true
	}
	if n, ok := v.Int64(); ok && v.Type != TypeBool {
		return float64(n), true
	}
	return 0, false
}

// Any returns the Go value carried by v, or nil for an invalid value.
func (v Value) Any() any {
	switch v.Type {
	case TypeBool:
		return v.Bool
	case TypeUint8:
		return v.Uint8
	case TypeUint16:
		return v.Uint16
	case TypeInt16:
		return v.Int16
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeString:
		return v.Str
	}
	return nil
}

func (v Value) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%v(%s)", v.Any(), v.Type)
}

// MarshalJSON encodes the carried Go value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// Coerce converts a loosely typed Go value (as decoded from JSON or Lua)
// into a Value of type t. Integer targets reject fractional and out-of-range input.
func Coerce(t ValueType, x any) (Value, error) {
	switch t {
	case TypeBool:
		switch b := x.(type) {
		case bool:
			return Bool(b), nil
		case float64:
			return Bool(b != 0), nil
		case int:
			return Bool(b != 0), nil
		}
		return Invalid(), fmt.Errorf("matter: cannot convert %T to bool", x)
	case TypeFloat:
		f, ok := toFloat64(x)
		if !ok {
			return Invalid(), fmt.Errorf("matter: cannot convert %T to float", x)
		}
		return Float(float32(f)), nil
	case TypeString:
		s, ok := x.(string)
		if !ok {
			return Invalid(), fmt.Errorf("matter: cannot convert %T to string", x)
		}
		return String(s), nil
	case TypeUint8, TypeUint16, TypeInt16, TypeInt:
		f, ok := toFloat64(x)
		if !ok || f != math.Trunc(f) {
			return Invalid(), fmt.Errorf("matter: cannot convert %v to %s", x, t)
		}
		return FromInt64(t, int64(f))
	}
	return Invalid(), fmt.Errorf("matter: unsupported type %s", t)
}

// FromInt64 narrows n into an integer Value of type t.
func FromInt64(t ValueType, n int64) (Value, error) {
	switch t {
	case TypeUint8:
		if n < 0 || n > math.MaxUint8 {
			return Invalid(), fmt.Errorf("matter: value %d overflows uint8 (max %d)", n, math.MaxUint8)
		}
		return Uint8(uint8(n)), nil
	case TypeUint16:
		if n < 0 || n > math.MaxUint16 {
			return Invalid(), fmt.Errorf("matter: value %d overflows uint16 (max %d)", n, math.MaxUint16)
		}
		return Uint16(uint16(n)), nil
	case TypeInt16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return Invalid(), fmt.Errorf("matter: value %d overflows int16 (range %d..%d)", n, math.MinInt16, math.MaxInt16)
		}
		return Int16(int16(n)), nil
	case TypeInt:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return Invalid(), fmt.Errorf("matter: value %d overflows int32 (range %d..%d)", n, math.MinInt32, math.MaxInt32)
		}
		return Int(int32(n)), nil
	}
	return Invalid(), fmt.Errorf("matter: %s is not an integer type", t)
}

// EncodeValue encodes v as a type byte followed by its little-endian payload.
func EncodeValue(v Value) ([]byte, error) {
	switch v.Type {
	case TypeBool:
		if v.Bool {
			return []byte{byte(TypeBool), 1}, nil
		}
		return []byte{byte(TypeBool), 0}, nil
	case TypeUint8:
		return []byte{byte(TypeUint8), v.Uint8}, nil
	case TypeUint16:
		buf := make([]byte, 3)
		buf[0] = byte(TypeUint16)
		binary.LittleEndian.PutUint16(buf[1:], v.Uint16)
		return buf, nil
	case TypeInt16:
		buf := make([]byte, 3)
		buf[0] = byte(TypeInt16)
		binary.LittleEndian.PutUint16(buf[1:], uint16(v.Int16))
		return buf, nil
	case TypeInt:
		buf := make([]byte, 5)
		buf[0] = byte(TypeInt)
		binary.LittleEndian.PutUint32(buf[1:], uint32(v.Int))
		return buf, nil
	case TypeFloat:
		buf := make([]byte, 5)
		buf[0] = byte(TypeFloat)
		binary.LittleEndian.PutUint32(buf[1:], math.Float32bits(v.Float))
		return buf, nil
	case TypeString:
		if len(v.Str) > 254 {
			return nil, fmt.Errorf("matter: string too long: %d (max 254)", len(v.Str))
		}
		buf := make([]byte, 2+len(v.Str))
		buf[0] = byte(TypeString)
		buf[1] = uint8(len(v.Str))
		copy(buf[2:], v.Str)
		return buf, nil
	}
	return nil, fmt.Errorf("matter: encode not implemented for type %s", v.Type)
}

// DecodeValue decodes data produced by EncodeValue.
func DecodeValue(data []byte) (Value, error) {
	if len(data) < 1 {
		return Invalid(), fmt.Errorf("matter: empty value")
	}
	t, payload := ValueType(data[0]), data[1:]
	need := map[ValueType]int{TypeBool: 1, TypeUint8: 1, TypeUint16: 2, TypeInt16: 2, TypeInt: 4, TypeFloat: 4, TypeString: 1}
	n, ok := need[t]
	if !ok {
		return Invalid(), fmt.Errorf("matter: unsupported type 0x%02X", uint8(t))
	}
	if len(payload) < n {
		return Invalid(), fmt.Errorf("matter: not enough data for %s: need %d, have %d", t, n, len(payload))
	}
	switch t {
	case TypeBool:
		return Bool(payload[0] != 0), nil
	case TypeUint8:
		return Uint8(payload[0]), nil
	case TypeUint16:
		return Uint16(binary.LittleEndian.Uint16(payload)), nil
	case TypeInt16:
		return Int16(int16(binary.LittleEndian.Uint16(payload))), nil
	case TypeInt:
		return Int(int32(binary.LittleEndian.Uint32(payload))), nil
	case TypeFloat:
		return Float(math.Float32frombits(binary.LittleEndian.Uint32(payload))), nil
	}
	length := int(payload[0])
	if len(payload) < 1+length {
		return Invalid(), fmt.Errorf("matter: string truncated: need %d, have %d", length, len(payload)-1)
	}
	return String(string(payload[1 : 1+length])), nil
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}
