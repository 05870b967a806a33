package sbe

import (
	"fmt"

	"github.com/danmuck/mdpwire/internal/field"
	"github.com/elliotchance/orderedmap/v3"
)

// Values is an ordered field name -> decoded value mapping.
type Values = *orderedmap.OrderedMap[string, any]

// NewValues returns an empty Values with room for n fields.
func NewValues(n int) Values {
	return orderedmap.NewOrderedMapWithCapacity[string, any](n)
}

// ValuesOf builds Values from alternating name, value pairs.
func ValuesOf(kv ...any) Values {
	out := NewValues(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		out.Set(kv[i].(string), kv[i+1])
	}
	return out
}

// Fields decodes an ordered run of named primitives into Values.
type Fields []field.Named

func (f Fields) Decode(buf []byte) (any, []byte, error) {
	out := NewValues(len(f))
	rest := buf
	for _, nf := range f {
		v, next, err := nf.Codec.Decode(rest)
		if err != nil {
			return nil, buf, fmt.Errorf("field %q: %w", nf.Name, err)
		}
		out.Set(nf.Name, v)
		rest = next
	}
	return out, rest, nil
}

func (f Fields) Encode(v any) ([]byte, error) {
	if len(f) == 0 {
		return []byte{}, nil
	}
	vals, ok := v.(Values)
	if !ok || vals == nil {
		return nil, fmt.Errorf("%w: %T for fields", ErrValueType, v)
	}
	out := make([]byte, 0, f.Size())
	for _, nf := range f {
		fv, ok := vals.Get(nf.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingField, nf.Name)
		}
		b, err := nf.Codec.Encode(fv)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", nf.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// Size is the summed width of the fields, ignoring any without a fixed width.
func (f Fields) Size() int {
	n := 0
	for _, nf := range f {
		if w := field.Width(nf.Codec); w > 0 {
			n += w
		}
	}
	return n
}
