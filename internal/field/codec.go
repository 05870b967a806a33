package field

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShortBuffer = errors.New("field: short buffer")
	ErrOutOfRange  = errors.New("field: value out of range")
	ErrType        = errors.New("field: unsupported value type")
	ErrUnknownType = errors.New("field: unknown type name")
)

// Codec encodes and decodes one value to and from the front of a byte span.
// Decode returns the value and the bytes left after it.
type Codec interface {
	Decode(buf []byte) (any, []byte, error)
	Encode(v any) ([]byte, error)
}

// Sized is implemented by codecs with a fixed wire width.
type Sized interface {
	Size() int
}

// Width returns the fixed wire width of c, or -1 when it has none.
func Width(c Codec) int {
	if s, ok := c.(Sized); ok {
		return s.Size()
	}
	return -1
}

// Named binds a codec to the field name it is decoded under.
type Named struct {
	Name  string
	Codec Codec
}

// Parse resolves a type name from a schema definition to a codec.
// length is only read for "string" and "raw".
func Parse(typ string, length int) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "uint8", "u8":
		return Uint8, nil
	case "uint16", "u16":
		return Uint16, nil
	case "uint32", "u32":
		return Uint32, nil
	case "uint64", "u64":
		return Uint64, nil
	case "int8", "i8":
		return Int8, nil
	case "int16", "i16":
		return Int16, nil
	case "int32", "i32":
		return Int32, nil
	case "int64", "i64":
		return Int64, nil
	case "price9", "price":
		return Price9, nil
	case "char":
		return String(1), nil
	case "string":
		if length <= 0 {
			return nil, fmt.Errorf("field: string needs a positive length, got %d", length)
		}
		return String(length), nil
	case "raw", "bytes":
		if length <= 0 {
			return nil, fmt.Errorf("field: raw needs a positive length, got %d", length)
		}
		return Raw(length), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

func short(kind string, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortBuffer, kind, need, have)
}
