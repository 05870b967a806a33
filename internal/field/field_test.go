package field

import (
	"bytes"
	"errors"
	"testing"
)

func TestUnsignedLittleEndian(t *testing.T) {
	b, err := Uint32.Encode(uint32(0x01020304))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Fatalf("unexpected bytes: %x", b)
	}
	v, rest, err := Uint32.Decode(append(b, 0xff))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.(uint32) != 0x01020304 || len(rest) != 1 {
		t.Fatalf("got %v rest=%d", v, len(rest))
	}
}

func TestUnsignedRejectsOutOfRange(t *testing.T) {
	if _, err := Uint8.Encode(256); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := Uint16.Encode(-1); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange for negative, got %v", err)
	}
	if _, err := Uint16.Encode("7"); !errors.Is(err, ErrType) {
		t.Fatalf("expected ErrType, got %v", err)
	}
}

func TestSignedRoundTripNegative(t *testing.T) {
	b, err := Int16.Encode(int16(-2))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	v, _, err := Int16.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.(int16) != -2 {
		t.Fatalf("expected -2, got %v", v)
	}
	if _, err := Int8.Encode(200); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestShortBufferIsDeterministic(t *testing.T) {
	_, rest, err := Uint64.Decode([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if len(rest) != 3 {
		t.Fatalf("short decode must not consume, rest=%d", len(rest))
	}
}

func TestStringPadsAndTrims(t *testing.T) {
	b, err := String(6).Encode("ESZ6")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{'E', 'S', 'Z', '6', 0, 0}) {
		t.Fatalf("unexpected bytes: %q", b)
	}
	v, _, err := String(6).Decode(b)
	if err != nil || v.(string) != "ESZ6" {
		t.Fatalf("decode: %v %v", v, err)
	}
	if _, err := String(2).Encode("ESZ6"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestRawCopiesOutOfBuffer(t *testing.T) {
	buf := []byte{1, 2, 3}
	v, _, err := Raw(3).Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	buf[0] = 9
	if v.([]byte)[0] != 1 {
		t.Fatalf("raw value aliases input buffer")
	}
}

func TestPrice9(t *testing.T) {
	in := Decimal{Mantissa: 4_512_250_000_000, Exponent: -9}
	b, err := Price9.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	v, _, err := Price9.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := v.(Decimal)
	if got != in {
		t.Fatalf("got %+v want %+v", got, in)
	}
	if got.String() != "4512.25" {
		t.Fatalf("unexpected string: %s", got.String())
	}
	if !(Decimal{Mantissa: NullMantissa}).IsNull() {
		t.Fatalf("expected null price")
	}
}

func TestParse(t *testing.T) {
	c, err := Parse("u16", 0)
	if err != nil || c != Uint16 {
		t.Fatalf("parse u16: %v %v", c, err)
	}
	c, err = Parse("string", 20)
	if err != nil || c != String(20) {
		t.Fatalf("parse string: %v %v", c, err)
	}
	if _, err := Parse("string", 0); err == nil {
		t.Fatalf("expected error for zero-length string")
	}
	if _, err := Parse("float128", 0); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}
