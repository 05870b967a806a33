package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/danmuck/mdpwire/internal/config"
	"github.com/danmuck/mdpwire/internal/export"
	"github.com/danmuck/mdpwire/internal/frame"
	"github.com/danmuck/mdpwire/internal/testutil/testlog"
)

func heartbeat() frame.Message {
	return frame.Message{Header: frame.Header{TemplateID: 12, SchemaID: 1, Version: 9}}
}

// spreadMessage builds template 900 with one leg carrying fills.
func spreadMessage(fills int) frame.Message {
	p := binary.LittleEndian.AppendUint64(nil, 1_700_000_000)
	p = append(p, 0x80)
	p = binary.LittleEndian.AppendUint16(p, 6)
	p = append(p, 1)
	p = binary.LittleEndian.AppendUint32(p, 101)
	p = append(p, 1, 0)
	p = binary.LittleEndian.AppendUint16(p, 8)
	p = append(p, byte(fills))
	for i := 0; i < fills; i++ {
		p = binary.LittleEndian.AppendUint32(p, uint32(10*(i+1)))
		p = binary.LittleEndian.AppendUint32(p, uint32(500+i))
	}
	return frame.Message{Header: frame.Header{BlockLength: 9, TemplateID: 900, SchemaID: 1, Version: 9}, Payload: p}
}

func TestExampleConfigLoads(t *testing.T) {
	testlog.Start(t)
	cfg, err := config.LoadConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SchemaFile != filepath.Join(".", "ex.schema.toml") {
		t.Fatalf("unexpected schema file: %q", cfg.SchemaFile)
	}
	dec, err := loadDecoder(cfg)
	if err != nil {
		t.Fatalf("load decoder: %v", err)
	}
	if n := len(dec.Registry().Templates()); n != 5 {
		t.Fatalf("expected 5 templates, got %d", n)
	}
}

func TestDecodeCaptureWritesResultsInOrder(t *testing.T) {
	testlog.Start(t)
	cfg, err := config.LoadConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	dec, err := loadDecoder(cfg)
	if err != nil {
		t.Fatalf("load decoder: %v", err)
	}

	var capture bytes.Buffer
	packets := []frame.Packet{
		{Header: frame.PacketHeader{SeqNum: 1}, Messages: []frame.Message{heartbeat(), spreadMessage(2)}},
		{Header: frame.PacketHeader{SeqNum: 2}, Messages: []frame.Message{{Header: frame.Header{TemplateID: 4242}}, spreadMessage(0)}},
	}
	for _, p := range packets {
		if err := frame.WritePacket(&capture, p, cfg.Limits); err != nil {
			t.Fatalf("write packet: %v", err)
		}
	}

	var out bytes.Buffer
	stats, err := decodeCapture(context.Background(), dec, 3, &capture, export.NewWriter(&out, export.FormatJSON))
	if err != nil {
		t.Fatalf("decode capture: %v", err)
	}
	if stats.Packets != 2 || stats.Messages != 4 || stats.Decoded != 3 || stats.Rejected != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	type line struct {
		SeqNum     uint32          `json:"seq"`
		Index      int             `json:"index"`
		TemplateID uint16          `json:"template_id"`
		Message    json.RawMessage `json:"message"`
		Error      string          `json:"error"`
	}
	var lines []line
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var l line
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("bad line: %v", err)
		}
		lines = append(lines, l)
	}
	want := []struct {
		seq   uint32
		index int
		tmpl  uint16
	}{{1, 0, 12}, {1, 1, 900}, {2, 0, 4242}, {2, 1, 900}}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, w := range want {
		if lines[i].SeqNum != w.seq || lines[i].Index != w.index || lines[i].TemplateID != w.tmpl {
			t.Fatalf("line %d: got %+v want %+v", i, lines[i], w)
		}
	}
	if lines[2].Error == "" || lines[2].Message != nil {
		t.Fatalf("unknown template line should carry an error: %+v", lines[2])
	}
	if !bytes.Contains(lines[1].Message, []byte(`"FillID":501`)) {
		t.Fatalf("nested fills missing: %s", lines[1].Message)
	}
}

func TestRunRequiresAnAction(t *testing.T) {
	testlog.Start(t)
	if err := run(context.Background(), options{configPath: "ex.config.toml"}, nil, nil); err == nil {
		t.Fatalf("expected error without -capture or -serve")
	}
}

func TestRunDecodesCaptureFromStdin(t *testing.T) {
	testlog.Start(t)
	var capture bytes.Buffer
	p := frame.Packet{Header: frame.PacketHeader{SeqNum: 7}, Messages: []frame.Message{spreadMessage(1)}}
	if err := frame.WritePacket(&capture, p, frame.DefaultLimits()); err != nil {
		t.Fatalf("write packet: %v", err)
	}
	var out bytes.Buffer
	opts := options{configPath: "ex.config.toml", capturePath: "-", format: "json"}
	if err := run(context.Background(), opts, &capture, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(`"name":"SpreadFills900"`)) {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
