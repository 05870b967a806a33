package sbe

import (
	"errors"
	"fmt"

	"github.com/danmuck/mdpwire/internal/field"
	"github.com/rs/zerolog/log"
)

// GroupMember is one repeating group of a schema together with the size and
// count fields that precede it on the wire.
type GroupMember struct {
	Name string
	// BlockLength is the nominal element width written to the size field.
	BlockLength uint16
	Size        field.Codec
	Count       field.Codec
	Group       RepeatingGroup
}

// Member wires a group with the standard u16 block length and u8
// NumInGroup header.
func Member(name string, blockLength uint16, g RepeatingGroup) GroupMember {
	if g.Name == "" {
		g.Name = name
	}
	return GroupMember{
		Name:        name,
		BlockLength: blockLength,
		Size:        field.Uint16,
		Count:       field.Uint8,
		Group:       g,
	}
}

// Schema is a block followed by its repeating groups in wire order. A
// Schema is itself a field.Codec, so it can be the element of an outer
// group.
type Schema struct {
	Name   string
	Block  Padding
	Groups []GroupMember
}

// Group is one decoded repeating group.
type Group struct {
	Name          string
	BlockLength   int
	DeclaredCount int
	Elements      []any
}

// Count is the number of elements held, which is what encode writes.
func (g Group) Count() int { return len(g.Elements) }

// Record is a decoded block and its groups.
type Record struct {
	Fields Values
	Groups []Group

	// set when a raw fallback consumed the bytes of later sibling groups
	absorbed bool
}

// Get returns a block field value.
func (r *Record) Get(name string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	return r.Fields.Get(name)
}

// Group returns the first group with the given name.
func (r *Record) Group(name string) (Group, bool) {
	if r == nil {
		return Group{}, false
	}
	for _, g := range r.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// RawElements counts elements, at any depth, that fell back to raw bytes.
func (r *Record) RawElements() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, g := range r.Groups {
		for _, el := range g.Elements {
			switch v := el.(type) {
			case Raw:
				n++
			case *Record:
				n += v.RawElements()
			}
		}
	}
	return n
}

func (s Schema) Decode(buf []byte) (any, []byte, error) {
	rec, rest, err := s.DecodeRecord(buf)
	if err != nil {
		return nil, buf, err
	}
	return rec, rest, nil
}

// DecodeRecord decodes the block, then each group in declaration order,
// threading the remaining buffer through.
func (s Schema) DecodeRecord(buf []byte) (*Record, []byte, error) {
	v, rest, err := s.Block.Decode(buf)
	if err != nil {
		return nil, buf, fmt.Errorf("sbe: %s block: %w", s.label(), err)
	}
	fields, ok := v.(Values)
	if !ok || fields == nil {
		return nil, buf, fmt.Errorf("%w: %s block decoded to %T", ErrValueType, s.label(), v)
	}

	rec := &Record{Fields: fields, Groups: make([]Group, 0, len(s.Groups))}
	for _, m := range s.Groups {
		if rec.absorbed && len(rest) == 0 {
			// the header of this group went into an earlier raw element
			log.Debug().
				Str("schema", s.label()).
				Str("group", m.Name).
				Msg("sbe: group header absorbed by raw fallback, decoded empty")
			rec.Groups = append(rec.Groups, Group{Name: m.Name, Elements: []any{}})
			continue
		}
		ctx, next, err := m.readHeader(rest, fields)
		if err != nil {
			return nil, buf, fmt.Errorf("sbe: %s: %w", s.label(), err)
		}
		declared := m.Group.declared(ctx)
		next, elements, absorbed, err := m.Group.decode(next, declared)
		if err != nil {
			return nil, buf, fmt.Errorf("sbe: %s: %w", s.label(), err)
		}
		if absorbed {
			rec.absorbed = true
		}
		rec.Groups = append(rec.Groups, Group{
			Name:          m.Name,
			BlockLength:   ctx.BlockLength,
			DeclaredCount: declared,
			Elements:      elements,
		})
		rest = next
	}
	return rec, rest, nil
}

func (m GroupMember) readHeader(buf []byte, block Values) (GroupContext, []byte, error) {
	size, rest, err := readCount(m.Size, buf, m.Name+" size")
	if err != nil {
		return GroupContext{}, buf, err
	}
	count, rest, err := readCount(m.Count, rest, m.Name+" count")
	if err != nil {
		return GroupContext{}, buf, err
	}
	return GroupContext{Block: block, BlockLength: size, NumInGroup: count}, rest, nil
}

func readCount(c field.Codec, buf []byte, context string) (int, []byte, error) {
	v, rest, err := c.Decode(buf)
	if err != nil {
		if errors.Is(err, field.ErrShortBuffer) {
			return 0, buf, &ShortBufferError{Context: context, Need: field.Width(c), Have: len(buf)}
		}
		return 0, buf, fmt.Errorf("%s: %w", context, err)
	}
	n, err := field.Int(v)
	if err != nil {
		return 0, buf, fmt.Errorf("%s: %w", context, err)
	}
	return int(n), rest, nil
}

func (s Schema) Encode(v any) ([]byte, error) {
	switch rec := v.(type) {
	case *Record:
		return s.EncodeRecord(rec)
	case Record:
		return s.EncodeRecord(&rec)
	}
	return nil, fmt.Errorf("%w: %T for schema %s", ErrValueType, v, s.label())
}

// EncodeRecord writes the block, then for each group its size field, its
// element count and its elements. Record groups are matched to the schema by
// position; missing trailing groups are written empty.
func (s Schema) EncodeRecord(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record for schema %s", ErrValueType, s.label())
	}
	out, err := s.Block.Encode(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("sbe: %s block: %w", s.label(), err)
	}
	for i, m := range s.Groups {
		var g Group
		if i < len(rec.Groups) {
			g = rec.Groups[i]
		}
		if g.Name != "" && g.Name != m.Name {
			return nil, fmt.Errorf("%w: %s position %d holds %q, want %q", ErrGroupOrder, s.label(), i, g.Name, m.Name)
		}
		size, err := m.Size.Encode(m.BlockLength)
		if err != nil {
			return nil, fmt.Errorf("sbe: %s %s size: %w", s.label(), m.Name, err)
		}
		count, err := m.Count.Encode(m.Group.Count(g.Elements))
		if err != nil {
			if errors.Is(err, field.ErrOutOfRange) {
				return nil, fmt.Errorf("%w: %s %s has %d elements", ErrCountOverflow, s.label(), m.Name, len(g.Elements))
			}
			return nil, fmt.Errorf("sbe: %s %s count: %w", s.label(), m.Name, err)
		}
		body, err := m.Group.Encode(g.Elements)
		if err != nil {
			return nil, fmt.Errorf("sbe: %s: %w", s.label(), err)
		}
		out = append(out, size...)
		out = append(out, count...)
		out = append(out, body...)
	}
	return out, nil
}

// Strict returns a copy of s whose groups, at any depth, return malformed
// elements as errors.
func (s Schema) Strict() Schema {
	out := s
	out.Block = strictCodec(s.Block).(Padding)
	out.Groups = make([]GroupMember, len(s.Groups))
	for i, m := range s.Groups {
		m.Group.Strict = true
		m.Group.Element = strictCodec(m.Group.Element)
		out.Groups[i] = m
	}
	return out
}

func strictCodec(c field.Codec) field.Codec {
	switch v := c.(type) {
	case Schema:
		return v.Strict()
	case Padding:
		v.Inner = strictCodec(v.Inner)
		return v
	}
	return c
}

func (s Schema) label() string {
	if s.Name == "" {
		return "schema"
	}
	return s.Name
}
