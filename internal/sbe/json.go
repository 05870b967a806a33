package sbe

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MarshalJSON keeps block fields in wire order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRecord(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `{"template_id":%d,"name":`, m.TemplateID)
	if err := writeJSON(&buf, m.Name); err != nil {
		return nil, err
	}
	buf.WriteString(`,"record":`)
	if err := writeRecord(&buf, m.Record); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, r *Record) error {
	if r == nil {
		buf.WriteString("null")
		return nil
	}
	buf.WriteString(`{"fields":`)
	if err := writeValues(buf, r.Fields); err != nil {
		return err
	}
	buf.WriteString(`,"groups":[`)
	for i, g := range r.Groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"name":`)
		if err := writeJSON(buf, g.Name); err != nil {
			return err
		}
		fmt.Fprintf(buf, `,"block_length":%d,"count":%d,"elements":[`, g.BlockLength, g.Count())
		for j, el := range g.Elements {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeElement(buf, el); err != nil {
				return err
			}
		}
		buf.WriteString("]}")
	}
	buf.WriteString("]}")
	return nil
}

func writeElement(buf *bytes.Buffer, el any) error {
	switch v := el.(type) {
	case Raw:
		fmt.Fprintf(buf, `{"raw":"%s"}`, hex.EncodeToString(v))
		return nil
	case *Record:
		return writeRecord(buf, v)
	case Values:
		return writeValues(buf, v)
	}
	return writeJSON(buf, el)
}

func writeValues(buf *bytes.Buffer, v Values) error {
	buf.WriteByte('{')
	if v != nil {
		first := true
		for el := v.Front(); el != nil; el = el.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := writeJSON(buf, el.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, el.Value); err != nil {
				return err
			}
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
