// Package frame splits an MDP3-style capture into SBE messages and writes
// them back. All integers are little-endian.
//
// Capture record:  u16 packet length | packet
// Packet:          u32 MsgSeqNum | u64 SendingTime | message...
// Message:         u16 MsgSize | u16 BlockLength | u16 TemplateID |
//                  u16 SchemaID | u16 Version | payload
//
// MsgSize counts the whole message, itself included.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	PacketHeaderLen  = 12
	MessageHeaderLen = 10
)

var (
	ErrShortHeader     = errors.New("frame: short header")
	ErrTruncated       = errors.New("frame: truncated message")
	ErrInvalidMsgSize  = errors.New("frame: msg_size smaller than message header")
	ErrMessageTooLarge = errors.New("frame: message too large")
	ErrPacketTooLarge  = errors.New("frame: packet too large")
	ErrTooManyMessages = errors.New("frame: too many messages in packet")
)

// PacketHeader is the binary packet header preceding a packet's messages.
type PacketHeader struct {
	SeqNum      uint32
	SendingTime uint64
}

// Header is the SBE message header.
type Header struct {
	BlockLength uint16
	TemplateID  uint16
	SchemaID    uint16
	Version     uint16
}

// Message is one framed SBE message.
type Message struct {
	Header  Header
	Payload []byte
}

// Packet is one capture record.
type Packet struct {
	Header   PacketHeader
	Messages []Message
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxMessageBytes int
	MaxPacketBytes  int
	MaxMessages     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxMessageBytes: 4 * 1024,
		MaxPacketBytes:  64*1024 - 1,
		MaxMessages:     256,
	}
}

// ReadPacket reads the next capture record. It returns io.EOF only when r
// ends cleanly between records.
func ReadPacket(r io.Reader, limits Limits) (Packet, error) {
	buf, err := ReadRecord(r, limits)
	if err != nil {
		return Packet{}, err
	}
	return ParsePacket(buf, limits)
}

// ReadRecord reads the next length-prefixed packet without parsing it.
// After a nil error the stream is positioned at the following record.
func ReadRecord(r io.Reader, limits Limits) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortHeader
		}
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(lenBuf[:]))
	if n > limits.MaxPacketBytes {
		return nil, ErrPacketTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	return buf, nil
}

// ParsePacket splits a packet into its messages. Message payloads are
// copied out of b.
func ParsePacket(b []byte, limits Limits) (Packet, error) {
	if len(b) < PacketHeaderLen {
		return Packet{}, ErrShortHeader
	}
	p := Packet{Header: PacketHeader{
		SeqNum:      binary.LittleEndian.Uint32(b[0:4]),
		SendingTime: binary.LittleEndian.Uint64(b[4:12]),
	}}
	rest := b[PacketHeaderLen:]
	for len(rest) > 0 {
		if len(p.Messages) >= limits.MaxMessages {
			return Packet{}, ErrTooManyMessages
		}
		m, next, err := ParseMessage(rest, limits)
		if err != nil {
			return Packet{}, fmt.Errorf("frame: seq=%d message %d: %w", p.Header.SeqNum, len(p.Messages), err)
		}
		p.Messages = append(p.Messages, m)
		rest = next
	}
	return p, nil
}

// ParseMessage reads one message from the front of b and returns the bytes
// after it.
func ParseMessage(b []byte, limits Limits) (Message, []byte, error) {
	if len(b) < MessageHeaderLen {
		return Message{}, b, ErrShortHeader
	}
	size := int(binary.LittleEndian.Uint16(b[0:2]))
	if size < MessageHeaderLen {
		return Message{}, b, ErrInvalidMsgSize
	}
	if size > limits.MaxMessageBytes {
		return Message{}, b, ErrMessageTooLarge
	}
	if size > len(b) {
		return Message{}, b, ErrTruncated
	}
	h, err := DecodeHeader(b[2:MessageHeaderLen])
	if err != nil {
		return Message{}, b, err
	}
	payload := make([]byte, size-MessageHeaderLen)
	copy(payload, b[MessageHeaderLen:size])
	return Message{Header: h, Payload: payload}, b[size:], nil
}

// AppendMessage appends m to dst with MsgSize derived from the payload.
func AppendMessage(dst []byte, m Message, limits Limits) ([]byte, error) {
	size := MessageHeaderLen + len(m.Payload)
	if size > limits.MaxMessageBytes || size > 0xffff {
		return nil, ErrMessageTooLarge
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(size))
	dst = append(dst, EncodeHeader(m.Header)...)
	return append(dst, m.Payload...), nil
}

// WritePacket writes p as one capture record.
func WritePacket(w io.Writer, p Packet, limits Limits) error {
	if len(p.Messages) > limits.MaxMessages {
		return ErrTooManyMessages
	}
	body := make([]byte, PacketHeaderLen, PacketHeaderLen+64*len(p.Messages))
	binary.LittleEndian.PutUint32(body[0:4], p.Header.SeqNum)
	binary.LittleEndian.PutUint64(body[4:12], p.Header.SendingTime)
	for _, m := range p.Messages {
		var err error
		body, err = AppendMessage(body, m, limits)
		if err != nil {
			return err
		}
	}
	if len(body) > limits.MaxPacketBytes || len(body) > 0xffff {
		return ErrPacketTooLarge
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, MessageHeaderLen-2)
	binary.LittleEndian.PutUint16(buf[0:2], h.BlockLength)
	binary.LittleEndian.PutUint16(buf[2:4], h.TemplateID)
	binary.LittleEndian.PutUint16(buf[4:6], h.SchemaID)
	binary.LittleEndian.PutUint16(buf[6:8], h.Version)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != MessageHeaderLen-2 {
		return Header{}, fmt.Errorf("frame: invalid sbe header length: %d", len(b))
	}
	return Header{
		BlockLength: binary.LittleEndian.Uint16(b[0:2]),
		TemplateID:  binary.LittleEndian.Uint16(b[2:4]),
		SchemaID:    binary.LittleEndian.Uint16(b[4:6]),
		Version:     binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}
