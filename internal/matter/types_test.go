package matter

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []Value{
		Bool(true),
		Bool(false),
		Uint8(0xFE),
		Uint16(0x1234),
		Int16(-300),
		Int(-70000),
		Float(1.5),
		String("node-1"),
		String(""),
	}
	for _, v := range tests {
		data, err := EncodeValue(v)
		if err != nil {
			t.Fatalf("encode %v: %v", v, err)
		}
		got, err := DecodeValue(data)
		if err != nil {
			t.Fatalf("decode %v: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip = %v, want %v", got, v)
		}
	}
}

func TestEncodeUint16LittleEndian(t *testing.T) {
	data, err := EncodeValue(Uint16(0x1234))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{byte(TypeUint16), 0x34, 0x12}
	if !bytes.Equal(data, want) {
		t.Errorf("encoded %X, want %X", data, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown type", []byte{0xEE, 0x00}},
		{"short uint16", []byte{byte(TypeUint16), 0x01}},
		{"truncated string", []byte{byte(TypeString), 5, 'a'}},
	}
	for _, tt := range tests {
		if _, err := DecodeValue(tt.data); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestEncodeStringTooLong(t *testing.T) {
	if _, err := EncodeValue(String(string(make([]byte, 255)))); err == nil {
		t.Error("expected error for 255-byte string")
	}
}

func TestFromInt64Overflow(t *testing.T) {
	tests := []struct {
		t  ValueType
		n  int64
		ok bool
	}{
		{TypeUint8, 254, true},
		{TypeUint8, 256, false},
		{TypeUint8, -1, false},
		{TypeUint16, 65535, true},
		{TypeUint16, 65536, false},
		{TypeInt16, -32768, true},
		{TypeInt16, 40000, false},
		{TypeInt, 1 << 31, false},
		{TypeBool, 1, false},
	}
	for _, tt := range tests {
		_, err := FromInt64(tt.t, tt.n)
		if (err == nil) != tt.ok {
			t.Errorf("FromInt64(%s, %d) err = %v, want ok=%v", tt.t, tt.n, err, tt.ok)
		}
	}
}

func TestCoerce(t *testing.T) {
	v, err := Coerce(TypeUint8, float64(200))
	if err != nil {
		t.Fatal(err)
	}
	if v != Uint8(200) {
		t.Errorf("got %v, want uint8 200", v)
	}

	if _, err := Coerce(TypeUint8, 1.5); err == nil {
		t.Error("expected error for fractional input")
	}
	if _, err := Coerce(TypeUint8, float64(300)); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := Coerce(TypeBool, "on"); err == nil {
		t.Error("expected error for string to bool")
	}

	b, err := Coerce(TypeBool, float64(1))
	if err != nil || b != Bool(true) {
		t.Errorf("Coerce(bool, 1) = %v, %v", b, err)
	}
}

func TestValueAccessors(t *testing.T) {
	if n, ok := Uint16(500).Int64(); !ok || n != 500 {
		t.Errorf("Int64 = %d, %v", n, ok)
	}
	if _, ok := Bool(true).Float64(); ok {
		t.Error("bool should not convert to float")
	}
	if _, ok := String("x").Int64(); ok {
		t.Error("string should not convert to int")
	}
	if Invalid().IsValid() {
		t.Error("Invalid() reports valid")
	}
	if Invalid().Any() != nil {
		t.Error("Invalid().Any() should be nil")
	}
}

func TestBoundsContains(t *testing.T) {
	b := &Bounds{Min: Uint8(0), Max: Uint8(254)}
	if !b.Contains(Uint8(254)) {
		t.Error("254 should be in bounds")
	}
	if b.Contains(Uint16(255)) {
		t.Error("255 should be out of bounds")
	}
	if !b.Contains(Bool(true)) {
		t.Error("non-numeric values are never constrained")
	}
}
