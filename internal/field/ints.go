package field

import (
	"encoding/binary"
	"fmt"
)

// Unsigned is a little-endian unsigned integer of Width bytes.
type Unsigned struct{ Width int }

// Signed is a little-endian two's complement integer of Width bytes.
type Signed struct{ Width int }

var (
	Uint8  = Unsigned{Width: 1}
	Uint16 = Unsigned{Width: 2}
	Uint32 = Unsigned{Width: 4}
	Uint64 = Unsigned{Width: 8}

	Int8  = Signed{Width: 1}
	Int16 = Signed{Width: 2}
	Int32 = Signed{Width: 4}
	Int64 = Signed{Width: 8}
)

func (c Unsigned) Size() int { return c.Width }

func (c Unsigned) Decode(buf []byte) (any, []byte, error) {
	if len(buf) < c.Width {
		return nil, buf, short(fmt.Sprintf("uint%d", c.Width*8), c.Width, len(buf))
	}
	switch c.Width {
	case 1:
		return buf[0], buf[1:], nil
	case 2:
		return binary.LittleEndian.Uint16(buf), buf[2:], nil
	case 4:
		return binary.LittleEndian.Uint32(buf), buf[4:], nil
	case 8:
		return binary.LittleEndian.Uint64(buf), buf[8:], nil
	}
	return nil, buf, fmt.Errorf("field: invalid unsigned width %d", c.Width)
}

func (c Unsigned) Encode(v any) ([]byte, error) {
	n, err := asUint64(v)
	if err != nil {
		return nil, err
	}
	if c.Width < 8 && n > uint64(1)<<(8*uint(c.Width))-1 {
		return nil, fmt.Errorf("%w: %d does not fit uint%d", ErrOutOfRange, n, c.Width*8)
	}
	buf := make([]byte, c.Width)
	switch c.Width {
	case 1:
		buf[0] = byte(n)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(n))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(n))
	case 8:
		binary.LittleEndian.PutUint64(buf, n)
	default:
		return nil, fmt.Errorf("field: invalid unsigned width %d", c.Width)
	}
	return buf, nil
}

func (c Signed) Size() int { return c.Width }

func (c Signed) Decode(buf []byte) (any, []byte, error) {
	if len(buf) < c.Width {
		return nil, buf, short(fmt.Sprintf("int%d", c.Width*8), c.Width, len(buf))
	}
	switch c.Width {
	case 1:
		return int8(buf[0]), buf[1:], nil
	case 2:
		return int16(binary.LittleEndian.Uint16(buf)), buf[2:], nil
	case 4:
		return int32(binary.LittleEndian.Uint32(buf)), buf[4:], nil
	case 8:
		return int64(binary.LittleEndian.Uint64(buf)), buf[8:], nil
	}
	return nil, buf, fmt.Errorf("field: invalid signed width %d", c.Width)
}

func (c Signed) Encode(v any) ([]byte, error) {
	n, err := asInt64(v)
	if err != nil {
		return nil, err
	}
	if c.Width < 8 {
		limit := int64(1) << (8*uint(c.Width) - 1)
		if n < -limit || n > limit-1 {
			return nil, fmt.Errorf("%w: %d does not fit int%d", ErrOutOfRange, n, c.Width*8)
		}
	}
	buf := make([]byte, c.Width)
	switch c.Width {
	case 1:
		buf[0] = byte(int8(n))
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(int16(n)))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(int32(n)))
	case 8:
		binary.LittleEndian.PutUint64(buf, uint64(n))
	default:
		return nil, fmt.Errorf("field: invalid signed width %d", c.Width)
	}
	return buf, nil
}

// Int converts any Go integer value to int64.
func Int(v any) (int64, error) { return asInt64(v) }

func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	}
	s, err := asInt64(v)
	if err != nil {
		return 0, err
	}
	if s < 0 {
		return 0, fmt.Errorf("%w: negative value %d for unsigned field", ErrOutOfRange, s)
	}
	return uint64(s), nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > 1<<63-1 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrOutOfRange, n)
		}
		return int64(n), nil
	case uint:
		if uint64(n) > 1<<63-1 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrOutOfRange, n)
		}
		return int64(n), nil
	case Decimal:
		return n.Mantissa, nil
	}
	return 0, fmt.Errorf("%w: %T", ErrType, v)
}
