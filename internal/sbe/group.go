package sbe

import (
	"errors"
	"fmt"

	"github.com/danmuck/mdpwire/internal/field"
	"github.com/rs/zerolog/log"
)

var errNoElementCodec = errors.New("sbe: group has no element codec")

// Raw is a group element that could not be decoded. It is kept as an
// opaque copy of its bytes and written back verbatim on encode.
type Raw []byte

// GroupContext holds the sibling values decoded ahead of a group. It is
// filled before the group runs and passed by value.
type GroupContext struct {
	Block       Values
	BlockLength int
	NumInGroup  int
}

// CountFunc derives a group's declared element count from its context.
type CountFunc func(GroupContext) int

// NumInGroup is the default CountFunc: the count field as read.
func NumInGroup(ctx GroupContext) int { return ctx.NumInGroup }

// RepeatingGroup decodes and encodes a declared count of elements.
//
// With LengthPerPacket > 0 every element occupies exactly that many bytes.
// With LengthPerPacket == 0 each element reports its own length through the
// leftover buffer its codec returns.
type RepeatingGroup struct {
	Name            string
	Element         field.Codec
	LengthPerPacket int
	CountFrom       CountFunc
	// Strict returns element decode failures instead of absorbing them
	// into a Raw element.
	Strict bool
}

// FixedGroup builds a group of fixed-width elements.
func FixedGroup(name string, lengthPerPacket int, element field.Codec) RepeatingGroup {
	return RepeatingGroup{Name: name, Element: element, LengthPerPacket: lengthPerPacket}
}

// NestedGroup builds a group of self-describing elements.
func NestedGroup(name string, element field.Codec) RepeatingGroup {
	return RepeatingGroup{Name: name, Element: element}
}

func (g RepeatingGroup) Fixed() bool { return g.LengthPerPacket > 0 }

func (g RepeatingGroup) declared(ctx GroupContext) int {
	if g.CountFrom == nil {
		return ctx.NumInGroup
	}
	return g.CountFrom(ctx)
}

// Decode reads up to declared elements from buf and returns the bytes after
// the group. It stops early, without error, when buf runs out; in fixed mode a
// tail shorter than one element is left in the returned buffer.
func (g RepeatingGroup) Decode(buf []byte, declared int) ([]byte, []any, error) {
	rest, elements, _, err := g.decode(buf, declared)
	return rest, elements, err
}

// decode also reports whether a lenient fallback absorbed the rest of buf,
// at this level or inside a nested element.
func (g RepeatingGroup) decode(buf []byte, declared int) ([]byte, []any, bool, error) {
	if declared <= 0 {
		return buf, []any{}, false, nil
	}
	absorbed := false
	elements := make([]any, 0, g.capacity(buf, declared))
	for remaining := declared; remaining > 0 && len(buf) > 0; remaining-- {
		index := len(elements)
		if g.Fixed() {
			if len(buf) < g.LengthPerPacket {
				log.Debug().
					Str("group", g.Name).
					Int("decoded", index).
					Int("declared", declared).
					Int("tail", len(buf)).
					Msg("sbe: group stopped on short fixed element")
				break
			}
			slot := buf[:g.LengthPerPacket:g.LengthPerPacket]
			v, err := g.decodeFixed(slot)
			if err != nil {
				if g.Strict {
					return buf, elements, false, &MalformedElementError{Group: g.Name, Index: index, Err: err}
				}
				g.logFallback(index, len(slot), err)
				v = copyRaw(slot)
			}
			elements = append(elements, v)
			buf = buf[g.LengthPerPacket:]
			continue
		}

		v, rest, err := g.decodeNext(buf)
		if err != nil {
			if g.Strict {
				return buf, elements, false, &MalformedElementError{Group: g.Name, Index: index, Err: err}
			}
			g.logFallback(index, len(buf), err)
			elements = append(elements, copyRaw(buf))
			buf = buf[len(buf):]
			absorbed = true
			break
		}
		if rec, ok := v.(*Record); ok && rec.absorbed && len(rest) == 0 {
			absorbed = true
		}
		elements = append(elements, v)
		buf = rest
	}
	return buf, elements, absorbed, nil
}

func (g RepeatingGroup) decodeFixed(slot []byte) (any, error) {
	if g.Element == nil {
		return nil, errNoElementCodec
	}
	v, _, err := g.Element.Decode(slot)
	return v, err
}

func (g RepeatingGroup) decodeNext(buf []byte) (any, []byte, error) {
	if g.Element == nil {
		return nil, buf, errNoElementCodec
	}
	v, rest, err := g.Element.Decode(buf)
	if err != nil {
		return nil, buf, err
	}
	if len(rest) > len(buf) {
		return nil, buf, fmt.Errorf("sbe: element codec grew the buffer from %d to %d bytes", len(buf), len(rest))
	}
	return v, rest, nil
}

func (g RepeatingGroup) capacity(buf []byte, declared int) int {
	if g.Fixed() {
		if n := len(buf) / g.LengthPerPacket; n < declared {
			return n
		}
		return declared
	}
	if declared > len(buf) {
		return len(buf)
	}
	return declared
}

func (g RepeatingGroup) logFallback(index, n int, err error) {
	log.Warn().
		Str("group", g.Name).
		Int("index", index).
		Int("raw_bytes", n).
		Err(err).
		Msg("sbe: group element kept as raw bytes")
}

// Encode writes elements in order. Fixed elements are zero padded to
// LengthPerPacket and rejected when wider; self-describing elements are
// concatenated.
func (g RepeatingGroup) Encode(elements []any) ([]byte, error) {
	size := 0
	if g.Fixed() {
		size = len(elements) * g.LengthPerPacket
	}
	out := make([]byte, 0, size)
	for i, el := range elements {
		b, err := g.encodeElement(el)
		if err != nil {
			return nil, fmt.Errorf("sbe: group %q element %d: %w", g.Name, i, err)
		}
		if g.Fixed() {
			if len(b) > g.LengthPerPacket {
				return nil, fmt.Errorf("%w: group %q element %d is %d bytes, limit %d",
					ErrOversize, g.Name, i, len(b), g.LengthPerPacket)
			}
			out = append(out, b...)
			out = append(out, make([]byte, g.LengthPerPacket-len(b))...)
			continue
		}
		out = append(out, b...)
	}
	return out, nil
}

func (g RepeatingGroup) encodeElement(el any) ([]byte, error) {
	if raw, ok := el.(Raw); ok {
		return copyRaw(raw), nil
	}
	if g.Element == nil {
		return nil, errNoElementCodec
	}
	return g.Element.Encode(el)
}

// Count is the element count written to the wire. It always comes from the
// elements themselves, never from a previously decoded count.
func (g RepeatingGroup) Count(elements []any) int { return len(elements) }

// Length is the encoded byte length of elements.
func (g RepeatingGroup) Length(elements []any) (int, error) {
	if g.Fixed() {
		return len(elements) * g.LengthPerPacket, nil
	}
	total := 0
	for i, el := range elements {
		b, err := g.encodeElement(el)
		if err != nil {
			return 0, fmt.Errorf("sbe: group %q element %d: %w", g.Name, i, err)
		}
		total += len(b)
	}
	return total, nil
}

func copyRaw(b []byte) Raw {
	out := make(Raw, len(b))
	copy(out, b)
	return out
}
