// Package decoder runs framed capture data through a template registry and
// records the outcome of every message.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/danmuck/mdpwire/internal/frame"
	"github.com/danmuck/mdpwire/internal/observability"
	"github.com/danmuck/mdpwire/internal/sbe"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of decoding one framed message.
type Result struct {
	SeqNum      uint32
	SendingTime uint64
	Index       int
	Header      frame.Header
	Message     *sbe.Message
	Err         error
}

// Stats counts what a Stream call saw.
type Stats struct {
	Packets         int `json:"packets"`
	RejectedPackets int `json:"rejected_packets"`
	Messages        int `json:"messages"`
	Decoded         int `json:"decoded"`
	Rejected        int `json:"rejected"`
	Fallbacks       int `json:"fallbacks"`
}

type Decoder struct {
	registry *sbe.Registry
	limits   frame.Limits
}

func New(registry *sbe.Registry, limits frame.Limits) *Decoder {
	return &Decoder{registry: registry, limits: limits}
}

func (d *Decoder) Registry() *sbe.Registry { return d.registry }

func (d *Decoder) Limits() frame.Limits { return d.limits }

// Classify maps a decode error to its metrics result label.
func Classify(err error) string {
	switch {
	case err == nil:
		return observability.ResultOK
	case errors.Is(err, sbe.ErrUnknownTemplate):
		return observability.ResultUnknownTemplate
	case errors.Is(err, sbe.ErrShortBuffer):
		return observability.ResultShortBuffer
	case errors.Is(err, sbe.ErrMalformedElement):
		return observability.ResultMalformed
	default:
		return observability.ResultError
	}
}

// DecodePayload decodes a bare SBE payload for templateID.
func (d *Decoder) DecodePayload(templateID uint16, payload []byte) (*sbe.Message, error) {
	start := time.Now()
	msg, err := d.registry.Decode(templateID, payload)
	observability.RecordDecode(templateID, Classify(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	if n := msg.Record.RawElements(); n > 0 {
		observability.RecordGroupFallbacks(templateID, n)
	}
	return msg, nil
}

// DecodeMessage decodes one framed message. A header block length that
// disagrees with the registry is logged, not rejected.
func (d *Decoder) DecodeMessage(m frame.Message) (*sbe.Message, error) {
	if declared, err := d.registry.BlockLength(m.Header.TemplateID); err == nil && declared != m.Header.BlockLength {
		log.Debug().
			Uint16("template_id", m.Header.TemplateID).
			Uint16("header_block_length", m.Header.BlockLength).
			Uint16("registry_block_length", declared).
			Msg("decoder: block length differs from registry")
	}
	return d.DecodePayload(m.Header.TemplateID, m.Payload)
}

// EncodeMessage serializes msg and frames it under the registry's declared
// block length.
func (d *Decoder) EncodeMessage(msg *sbe.Message, schemaID, version uint16) (frame.Message, error) {
	payload, err := d.registry.Encode(msg)
	if err != nil {
		return frame.Message{}, err
	}
	blockLength, err := d.registry.BlockLength(msg.TemplateID)
	if err != nil {
		return frame.Message{}, err
	}
	return frame.Message{
		Header: frame.Header{
			BlockLength: blockLength,
			TemplateID:  msg.TemplateID,
			SchemaID:    schemaID,
			Version:     version,
		},
		Payload: payload,
	}, nil
}

// NextPacket reads capture records from r until one parses, counting it in
// stats. Malformed packets are logged and skipped. It returns io.EOF when r
// ends cleanly between records.
func (d *Decoder) NextPacket(r io.Reader, stats *Stats) (frame.Packet, error) {
	for {
		record, err := frame.ReadRecord(r, d.limits)
		if errors.Is(err, io.EOF) {
			return frame.Packet{}, io.EOF
		}
		if err != nil {
			return frame.Packet{}, fmt.Errorf("decoder: packet %d: %w", stats.Packets, err)
		}
		stats.Packets++

		packet, err := frame.ParsePacket(record, d.limits)
		if err != nil {
			stats.RejectedPackets++
			log.Warn().Err(err).Int("packet", stats.Packets-1).Msg("decoder: packet rejected")
			continue
		}
		return packet, nil
	}
}

// Observe counts one message result and logs it when rejected.
func (s *Stats) Observe(res Result) {
	s.Messages++
	if res.Err != nil {
		s.Rejected++
		log.Warn().
			Err(res.Err).
			Uint32("seq", res.SeqNum).
			Int("index", res.Index).
			Uint16("template_id", res.Header.TemplateID).
			Msg("decoder: message rejected")
		return
	}
	s.Decoded++
	s.Fallbacks += res.Message.Record.RawElements()
}

// Stream decodes capture records from r until EOF and hands every message
// result to fn. Packets and messages that fail to decode are logged and
// skipped; an error from fn, from reading r, or from ctx stops the stream.
func (d *Decoder) Stream(ctx context.Context, r io.Reader, fn func(Result) error) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		packet, err := d.NextPacket(r, &stats)
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		for i, m := range packet.Messages {
			res := d.decodeFramed(packet.Header, i, m)
			stats.Observe(res)
			if err := fn(res); err != nil {
				return stats, err
			}
		}
	}
}

// DecodeBatch decodes msgs on up to workers goroutines. Results keep the
// order of msgs; per-message failures are reported in Result.Err and only
// cancellation of ctx fails the batch.
func (d *Decoder) DecodeBatch(ctx context.Context, msgs []frame.Message, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, m := range msgs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.decodeFramed(frame.PacketHeader{}, i, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Decoder) decodeFramed(ph frame.PacketHeader, index int, m frame.Message) Result {
	msg, err := d.DecodeMessage(m)
	return Result{
		SeqNum:      ph.SeqNum,
		SendingTime: ph.SendingTime,
		Index:       index,
		Header:      m.Header,
		Message:     msg,
		Err:         err,
	}
}
