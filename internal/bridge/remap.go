package bridge

import (
	"errors"
	"fmt"

	"matter-rainmaker/internal/matter"
	"matter-rainmaker/internal/rainmaker"
)

var (
	ErrUnsupportedType = errors.New("unsupported value type")
	ErrOutOfRange      = errors.New("value out of range")
)

// ToExternal converts a local attribute value into its parameter value. An
// unsupported value type returns ErrUnsupportedType together with Int(0) so
// callers may log and continue.
func ToExternal(v matter.Value, cluster, attribute uint32) (rainmaker.Value, error) {
	if m, ok := Lookup(cluster, attribute); ok && m.Remap.Kind != RemapNone {
		n, ok := v.Int64()
		if !ok || v.Type == matter.TypeBool {
			return rainmaker.Int(0), fmt.Errorf("%w: %s for remapped attribute", ErrUnsupportedType, v.Type)
		}
		r, err := m.Remap.toExternal(n)
		if err != nil {
			return rainmaker.Int(0), err
		}
		return rainmaker.Int(int32(r)), nil
	}

	switch v.Type {
	case matter.TypeBool:
		return rainmaker.Bool(v.Bool), nil
	case matter.TypeInt:
		return rainmaker.Int(v.Int), nil
	case matter.TypeFloat:
		return rainmaker.Float(v.Float), nil
	case matter.TypeUint8:
		return rainmaker.Int(int32(v.Uint8)), nil
	case matter.TypeUint16:
		return rainmaker.Int(int32(v.Uint16)), nil
	case matter.TypeInt16:
		return rainmaker.Int(int32(v.Int16)), nil
	}
	return rainmaker.Int(0), fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type)
}

// ToLocal converts a parameter value into the local attribute value,
// narrowed to the attribute's native width. Results that do not fit return
// ErrOutOfRange.
func ToLocal(v rainmaker.Value, cluster, attribute uint32) (matter.Value, error) {
	if m, ok := Lookup(cluster, attribute); ok {
		return m.localValue(v)
	}
	switch v.Type {
	case rainmaker.TypeBool:
		return matter.Bool(v.Bool), nil
	case rainmaker.TypeInt:
		return matter.Int(v.Int), nil
	case rainmaker.TypeFloat:
		return matter.Float(v.Float), nil
	}
	return matter.Int(0), fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type)
}

// localValue converts v for a mapped attribute. Integers always come back
// as m.LocalType, remapped or not.
func (m Mapping) localValue(v rainmaker.Value) (matter.Value, error) {
	switch {
	case v.Type == rainmaker.TypeBool && m.LocalType == matter.TypeBool && m.Remap.Kind == RemapNone:
		return matter.Bool(v.Bool), nil
	case v.Type == rainmaker.TypeFloat && m.LocalType == matter.TypeFloat && m.Remap.Kind == RemapNone:
		return matter.Float(v.Float), nil
	case v.Type != rainmaker.TypeInt, m.LocalType == matter.TypeBool, m.LocalType == matter.TypeFloat:
		return matter.Int(0), fmt.Errorf("%w: %s for %s attribute", ErrUnsupportedType, v.Type, m.LocalType)
	}

	n, err := m.Remap.toLocal(int64(v.Int))
	if err != nil {
		return matter.Int(0), err
	}
	local, err := matter.FromInt64(m.LocalType, n)
	if err != nil {
		return matter.Int(0), fmt.Errorf("%w: %v", ErrOutOfRange, err)
	}
	return local, nil
}

func (r Remap) toExternal(n int64) (int64, error) {
	switch r.Kind {
	case RemapLinear:
		return scale(n, r.Local, r.External)
	case RemapInverse:
		return invert(n, r.Factor)
	}
	return n, nil
}

func (r Remap) toLocal(n int64) (int64, error) {
	switch r.Kind {
	case RemapLinear:
		return scale(n, r.External, r.Local)
	case RemapInverse:
		return invert(n, r.Factor)
	}
	return n, nil
}

// scale maps n from 0..from onto 0..to, rounding half up.
func scale(n, from, to int64) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrOutOfRange, n)
	}
	return (2*n*to + from) / (2 * from), nil
}

// invert returns factor / n rounded half up.
func invert(n, factor int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: cannot invert %d", ErrOutOfRange, n)
	}
	return (2*factor + n) / (2 * n), nil
}
