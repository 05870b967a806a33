// Package export writes decoded messages as JSON lines or MessagePack.
// Both formats keep block fields in wire order.
package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/mdpwire/internal/decoder"
	"github.com/danmuck/mdpwire/internal/field"
	"github.com/danmuck/mdpwire/internal/sbe"
	"github.com/vmihailenco/msgpack/v5"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json", "jsonl":
		return FormatJSON, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Marshal serializes one message in format f.
func Marshal(f Format, m *sbe.Message) ([]byte, error) {
	if f == FormatMsgpack {
		return msgpackMessage(m)
	}
	return json.Marshal(m)
}

type jsonResult struct {
	SeqNum      uint32       `json:"seq"`
	SendingTime uint64       `json:"sending_time"`
	Index       int          `json:"index"`
	TemplateID  uint16       `json:"template_id"`
	Message     *sbe.Message `json:"message,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Writer streams decode results. JSON output is one object per line;
// MessagePack output is a sequence of maps.
type Writer struct {
	format Format
	buf    *bufio.Writer
	enc    *msgpack.Encoder
}

func NewWriter(w io.Writer, f Format) *Writer {
	out := &Writer{format: f, buf: bufio.NewWriter(w)}
	if f == FormatMsgpack {
		out.enc = msgpack.NewEncoder(out.buf)
	}
	return out
}

func (w *Writer) WriteResult(r decoder.Result) error {
	if w.format == FormatMsgpack {
		return w.writeMsgpackResult(r)
	}
	jr := jsonResult{
		SeqNum:      r.SeqNum,
		SendingTime: r.SendingTime,
		Index:       r.Index,
		TemplateID:  r.Header.TemplateID,
		Message:     r.Message,
	}
	if r.Err != nil {
		jr.Error = r.Err.Error()
	}
	b, err := json.Marshal(jr)
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(b); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

func (w *Writer) Flush() error { return w.buf.Flush() }

func (w *Writer) writeMsgpackResult(r decoder.Result) error {
	enc := w.enc
	if err := enc.EncodeMapLen(5); err != nil {
		return err
	}
	if err := encodeKV(enc, "seq", r.SeqNum); err != nil {
		return err
	}
	if err := encodeKV(enc, "sending_time", r.SendingTime); err != nil {
		return err
	}
	if err := encodeKV(enc, "index", r.Index); err != nil {
		return err
	}
	if err := encodeKV(enc, "template_id", r.Header.TemplateID); err != nil {
		return err
	}
	if r.Err != nil {
		return encodeKV(enc, "error", r.Err.Error())
	}
	if err := enc.EncodeString("message"); err != nil {
		return err
	}
	return encodeMessage(enc, r.Message)
}

func msgpackMessage(m *sbe.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeMessage(msgpack.NewEncoder(&buf), m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeKV(enc *msgpack.Encoder, key string, v any) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.Encode(v)
}

func encodeMessage(enc *msgpack.Encoder, m *sbe.Message) error {
	if m == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := encodeKV(enc, "template_id", m.TemplateID); err != nil {
		return err
	}
	if err := encodeKV(enc, "name", m.Name); err != nil {
		return err
	}
	if err := enc.EncodeString("record"); err != nil {
		return err
	}
	return encodeRecord(enc, m.Record)
}

func encodeRecord(enc *msgpack.Encoder, r *sbe.Record) error {
	if r == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("fields"); err != nil {
		return err
	}
	if err := encodeValues(enc, r.Fields); err != nil {
		return err
	}
	if err := enc.EncodeString("groups"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(r.Groups)); err != nil {
		return err
	}
	for _, g := range r.Groups {
		if err := enc.EncodeMapLen(4); err != nil {
			return err
		}
		if err := encodeKV(enc, "name", g.Name); err != nil {
			return err
		}
		if err := encodeKV(enc, "block_length", g.BlockLength); err != nil {
			return err
		}
		if err := encodeKV(enc, "count", g.Count()); err != nil {
			return err
		}
		if err := enc.EncodeString("elements"); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(g.Elements)); err != nil {
			return err
		}
		for _, el := range g.Elements {
			if err := encodeElement(enc, el); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeElement(enc *msgpack.Encoder, el any) error {
	switch v := el.(type) {
	case sbe.Raw:
		if err := enc.EncodeMapLen(1); err != nil {
			return err
		}
		if err := enc.EncodeString("raw"); err != nil {
			return err
		}
		return enc.EncodeBytes(v)
	case *sbe.Record:
		return encodeRecord(enc, v)
	case sbe.Values:
		return encodeValues(enc, v)
	}
	return encodeValue(enc, el)
}

func encodeValues(enc *msgpack.Encoder, v sbe.Values) error {
	if v == nil {
		return enc.EncodeMapLen(0)
	}
	if err := enc.EncodeMapLen(v.Len()); err != nil {
		return err
	}
	for el := v.Front(); el != nil; el = el.Next() {
		if err := enc.EncodeString(el.Key); err != nil {
			return err
		}
		if err := encodeValue(enc, el.Value); err != nil {
			return err
		}
	}
	return nil
}

// encodeValue writes prices as exact decimal strings.
func encodeValue(enc *msgpack.Encoder, v any) error {
	if d, ok := v.(field.Decimal); ok {
		if d.IsNull() {
			return enc.EncodeNil()
		}
		return enc.EncodeString(d.String())
	}
	return enc.Encode(v)
}
