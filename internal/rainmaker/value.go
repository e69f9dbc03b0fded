package rainmaker

import (
	"encoding/json"
	"fmt"
	"math"
)

// ValueType is the data type of a parameter value.
type ValueType uint8

const (
	TypeInvalid ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeObject
)

// DataType returns the node config name of the type.
func (t ValueType) DataType() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeObject:
		return "object"
	}
	return "invalid"
}

func (t ValueType) String() string { return t.DataType() }

// Value is a typed parameter value. Objects are carried as JSON text in Str.
type Value struct {
	Type  ValueType
	Bool  bool
	Int   int32
	Float float32
	Str   string
}

func Invalid() Value         { return Value{} }
func Bool(b bool) Value      { return Value{Type: TypeBool, Bool: b} }
func Int(i int32) Value      { return Value{Type: TypeInt, Int: i} }
func Float(f float32) Value  { return Value{Type: TypeFloat, Float: f} }
func String(s string) Value  { return Value{Type: TypeString, Str: s} }
func Object(js string) Value { return Value{Type: TypeObject, Str: js} }

// IsValid reports whether v carries a value.
func (v Value) IsValid() bool { return v.Type != TypeInvalid }

// Float64 returns numeric values widened to float64.
func (v Value) Float64() (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.Int), true
	case TypeFloat:
		return float64(v.Float), true
	}
	return 0, false
}

// Any returns the Go value carried by v.
func (v Value) Any() any {
	switch v.Type {
	case TypeBool:
		return v.Bool
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeString:
		return v.Str
	case TypeObject:
		return json.RawMessage(v.Str)
	}
	return nil
}

func (v Value) String() string {
	if !v.IsValid() {
		return "<invalid>"
	}
	if v.Type == TypeObject {
		return v.Str
	}
	return fmt.Sprintf("%v", v.Any())
}

// MarshalJSON encodes the carried Go value.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Type == TypeObject && v.Str == "" {
		return []byte("{}"), nil
	}
	return json.Marshal(v.Any())
}

// FromJSON converts a decoded JSON value into a Value of type t.
func FromJSON(t ValueType, x any) (Value, error) {
	switch t {
	case TypeBool:
		if b, ok := x.(bool); ok {
			return Bool(b), nil
		}
	case TypeInt:
		if f, ok := x.(float64); ok {
			if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
				return Invalid(), fmt.Errorf("%w: %v is not an int32", ErrInvalidValue, x)
			}
			return Int(int32(f)), nil
		}
		if n, ok := x.(int); ok && n >= math.MinInt32 && n <= math.MaxInt32 {
			return Int(int32(n)), nil
		}
	case TypeFloat:
		switch f := x.(type) {
		case float64:
			return Float(float32(f)), nil
		case int:
			return Float(float32(f)), nil
		}
	case TypeString:
		if s, ok := x.(string); ok {
			return String(s), nil
		}
	case TypeObject:
		data, err := json.Marshal(x)
		if err != nil {
			return Invalid(), fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return Object(string(data)), nil
	}
	return Invalid(), fmt.Errorf("%w: %T is not %s", ErrInvalidValue, x, t)
}

// Bounds are the (min, max, step) limits of a numeric parameter.
type Bounds struct {
	Min  Value `json:"min"`
	Max  Value `json:"max"`
	Step Value `json:"step"`
}

// Contains reports whether v lies within [Min, Max]. Non-numeric values are
// never constrained.
func (b *Bounds) Contains(v Value) bool {
	f, ok := v.Float64()
	if !ok {
		return true
	}
	if lo, ok := b.Min.Float64(); ok && f < lo {
		return false
	}
	if hi, ok := b.Max.Float64(); ok && f > hi {
		return false
	}
	return true
}
