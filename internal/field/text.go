package field

import (
	"bytes"
	"fmt"
)

// String is a fixed-width ASCII field, NUL padded on the right.
type String int

// Raw is a fixed-width opaque byte field.
type Raw int

func (c String) Size() int { return int(c) }

func (c String) Decode(buf []byte) (any, []byte, error) {
	n := int(c)
	if len(buf) < n {
		return nil, buf, short("string", n, len(buf))
	}
	return string(bytes.TrimRight(buf[:n], "\x00")), buf[n:], nil
}

func (c String) Encode(v any) ([]byte, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, fmt.Errorf("%w: %T for string field", ErrType, v)
	}
	if len(s) > int(c) {
		return nil, fmt.Errorf("%w: %q longer than %d bytes", ErrOutOfRange, s, int(c))
	}
	buf := make([]byte, int(c))
	copy(buf, s)
	return buf, nil
}

func (c Raw) Size() int { return int(c) }

func (c Raw) Decode(buf []byte) (any, []byte, error) {
	n := int(c)
	if len(buf) < n {
		return nil, buf, short("raw", n, len(buf))
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, buf[n:], nil
}

func (c Raw) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: %T for raw field", ErrType, v)
	}
	if len(b) > int(c) {
		return nil, fmt.Errorf("%w: %d bytes longer than %d", ErrOutOfRange, len(b), int(c))
	}
	buf := make([]byte, int(c))
	copy(buf, b)
	return buf, nil
}
