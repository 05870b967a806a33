package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/danmuck/mdpwire/internal/decoder"
	"github.com/danmuck/mdpwire/internal/field"
	"github.com/danmuck/mdpwire/internal/frame"
	"github.com/danmuck/mdpwire/internal/sbe"
	"github.com/danmuck/mdpwire/internal/testutil/testlog"
	"github.com/vmihailenco/msgpack/v5"
)

func sampleMessage() *sbe.Message {
	return &sbe.Message{
		TemplateID: 46,
		Name:       "Book46",
		Record: &sbe.Record{
			Fields: sbe.ValuesOf(
				"TransactTime", uint64(99),
				"MDEntryPx", field.Decimal{Mantissa: 4512250000000, Exponent: -9},
				"Alpha", uint8(1),
			),
			Groups: []sbe.Group{{
				Name:          "MDEntries",
				BlockLength:   4,
				DeclaredCount: 2,
				Elements:      []any{sbe.ValuesOf("V", uint32(7)), sbe.Raw{0xde, 0xad}},
			}},
		},
	}
}

func TestParseFormat(t *testing.T) {
	testlog.Start(t)
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "jsonl": FormatJSON, "msgpack": FormatMsgpack} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if FormatMsgpack.ContentType() != "application/msgpack" || FormatJSON.ContentType() != "application/json" {
		t.Fatalf("unexpected content types")
	}
}

func TestJSONLinesWriter(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	w := NewWriter(&out, FormatJSON)
	if err := w.WriteResult(decoder.Result{SeqNum: 4, Index: 0, Header: frame.Header{TemplateID: 46}, Message: sampleMessage()}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteResult(decoder.Result{SeqNum: 4, Index: 1, Header: frame.Header{TemplateID: 9}, Err: &sbe.UnknownTemplateError{TemplateID: 9}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	var lines []map[string]any
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not json: %v: %s", err, scanner.Text())
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if _, ok := lines[0]["message"]; !ok || lines[0]["error"] != nil {
		t.Fatalf("unexpected first line: %v", lines[0])
	}
	if lines[1]["error"] != "sbe: unknown template_id=9" || lines[1]["message"] != nil {
		t.Fatalf("unexpected second line: %v", lines[1])
	}
}

func TestJSONKeepsFieldOrder(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(FormatJSON, sampleMessage())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	i := bytes.Index(b, []byte(`"TransactTime"`))
	j := bytes.Index(b, []byte(`"MDEntryPx":4512.25`))
	k := bytes.Index(b, []byte(`"Alpha"`))
	if i < 0 || j < i || k < j {
		t.Fatalf("fields out of wire order: %s", b)
	}
}

func TestMsgpackKeepsFieldOrder(t *testing.T) {
	testlog.Start(t)
	b, err := Marshal(FormatMsgpack, sampleMessage())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	if n, err := dec.DecodeMapLen(); err != nil || n != 3 {
		t.Fatalf("message map: n=%d err=%v", n, err)
	}
	for _, key := range []string{"template_id", "name"} {
		if k, _ := dec.DecodeString(); k != key {
			t.Fatalf("expected key %q, got %q", key, k)
		}
		if err := dec.Skip(); err != nil {
			t.Fatalf("skip: %v", err)
		}
	}
	if k, _ := dec.DecodeString(); k != "record" {
		t.Fatalf("expected record key, got %q", k)
	}
	if n, _ := dec.DecodeMapLen(); n != 2 {
		t.Fatalf("record map len %d", n)
	}
	if k, _ := dec.DecodeString(); k != "fields" {
		t.Fatalf("expected fields key, got %q", k)
	}
	n, err := dec.DecodeMapLen()
	if err != nil || n != 3 {
		t.Fatalf("fields map: n=%d err=%v", n, err)
	}
	var keys []string
	var px string
	for i := 0; i < n; i++ {
		k, _ := dec.DecodeString()
		keys = append(keys, k)
		if k == "MDEntryPx" {
			px, _ = dec.DecodeString()
			continue
		}
		if err := dec.Skip(); err != nil {
			t.Fatalf("skip: %v", err)
		}
	}
	if keys[0] != "TransactTime" || keys[1] != "MDEntryPx" || keys[2] != "Alpha" {
		t.Fatalf("fields out of wire order: %v", keys)
	}
	if px != "4512.25" {
		t.Fatalf("price should be an exact decimal string, got %q", px)
	}
}

func TestMsgpackWriterStream(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	w := NewWriter(&out, FormatMsgpack)
	results := []decoder.Result{
		{SeqNum: 1, Header: frame.Header{TemplateID: 46}, Message: sampleMessage()},
		{SeqNum: 1, Index: 1, Header: frame.Header{TemplateID: 3}, Err: errors.New("boom")},
	}
	for _, r := range results {
		if err := w.WriteResult(r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	dec := msgpack.NewDecoder(&out)
	var first, second map[string]any
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	msg, ok := first["message"].(map[string]any)
	if !ok || msg["name"] != "Book46" {
		t.Fatalf("unexpected first result: %v", first)
	}
	record := msg["record"].(map[string]any)
	groups := record["groups"].([]any)
	elements := groups[0].(map[string]any)["elements"].([]any)
	raw := elements[1].(map[string]any)["raw"].([]byte)
	if !bytes.Equal(raw, []byte{0xde, 0xad}) {
		t.Fatalf("raw element not preserved: %x", raw)
	}
	if second["error"] != "boom" {
		t.Fatalf("unexpected second result: %v", second)
	}
}
