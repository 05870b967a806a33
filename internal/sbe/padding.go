package sbe

import (
	"fmt"

	"github.com/danmuck/mdpwire/internal/field"
)

// Padding fixes Inner to exactly Align bytes on the wire. Bytes Inner does
// not consume are reserved for fields a later schema version appends, so
// decode skips them and encode writes them as zero.
type Padding struct {
	Align int
	Inner field.Codec
}

// Block pads an ordered field run to a declared block length.
func Block(align int, fields ...field.Named) Padding {
	return Padding{Align: align, Inner: Fields(fields)}
}

func (p Padding) Size() int { return p.Align }

func (p Padding) Decode(buf []byte) (any, []byte, error) {
	if len(buf) < p.Align {
		return nil, buf, &ShortBufferError{Context: "block", Need: p.Align, Have: len(buf)}
	}
	if p.Align == 0 || p.Inner == nil {
		return NewValues(0), buf[p.Align:], nil
	}
	v, _, err := p.Inner.Decode(buf[:p.Align:p.Align])
	if err != nil {
		return nil, buf, err
	}
	return v, buf[p.Align:], nil
}

func (p Padding) Encode(v any) ([]byte, error) {
	if p.Align == 0 {
		return []byte{}, nil
	}
	var inner []byte
	if p.Inner != nil {
		b, err := p.Inner.Encode(v)
		if err != nil {
			return nil, err
		}
		inner = b
	}
	if len(inner) > p.Align {
		return nil, fmt.Errorf("%w: %d bytes into a %d byte block", ErrOversize, len(inner), p.Align)
	}
	out := make([]byte, p.Align)
	copy(out, inner)
	return out, nil
}
