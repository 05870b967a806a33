package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/mdpwire/internal/auth"
	"github.com/danmuck/mdpwire/internal/config"
	"github.com/danmuck/mdpwire/internal/decoder"
	"github.com/danmuck/mdpwire/internal/export"
	"github.com/danmuck/mdpwire/internal/frame"
	"github.com/danmuck/mdpwire/internal/logging"
	"github.com/danmuck/mdpwire/internal/observability"
	"github.com/danmuck/mdpwire/internal/server"
	"github.com/rs/zerolog/log"
)

// batchSize bounds how many messages a capture decode holds at once.
const batchSize = 1024

type options struct {
	configPath  string
	capturePath string
	format      string
	serve       bool
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	if opts.capturePath == "" && !opts.serve {
		return errors.New("nothing to do: pass -capture or -serve")
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logging.ApplyLevel(cfg.LogLevel)
	observability.InitLogger(cfg.Name)

	dec, err := loadDecoder(cfg)
	if err != nil {
		return err
	}

	if opts.capturePath != "" {
		in := stdin
		if opts.capturePath != "-" {
			f, err := os.Open(opts.capturePath)
			if err != nil {
				return fmt.Errorf("open capture: %w", err)
			}
			defer f.Close()
			in = f
		}
		stats, err := decodeCapture(ctx, dec, cfg.Workers, in, export.NewWriter(stdout, format))
		log.Info().
			Int("packets", stats.Packets).
			Int("messages", stats.Messages).
			Int("decoded", stats.Decoded).
			Int("rejected", stats.Rejected).
			Int("rejected_packets", stats.RejectedPackets).
			Int("fallbacks", stats.Fallbacks).
			Msg("mdpctl: capture decoded")
		if err != nil {
			return err
		}
	}

	if opts.serve {
		srv := server.New(cfg.Name, cfg.Addr, cfg.CorsOrigins, dec)
		if cfg.APIToken != "" {
			srv.RequireToken(auth.StaticToken{Token: cfg.APIToken})
		}
		return srv.Serve(ctx)
	}
	return nil
}

func loadDecoder(cfg config.Config) (*decoder.Decoder, error) {
	sf, err := config.LoadSchemaFile(cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	reg, err := config.BuildRegistry(sf, cfg.Strict)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("schema_file", cfg.SchemaFile).
		Int("templates", len(reg.Templates())).
		Bool("strict", cfg.Strict).
		Msg("mdpctl: schema loaded")
	return decoder.New(reg, cfg.Limits), nil
}

// decodeCapture decodes r in batches on workers goroutines and writes every
// result to w in capture order. Malformed packets are logged and skipped.
func decodeCapture(ctx context.Context, dec *decoder.Decoder, workers int, r io.Reader, w *export.Writer) (decoder.Stats, error) {
	var (
		stats   decoder.Stats
		msgs    = make([]frame.Message, 0, batchSize)
		headers = make([]frame.PacketHeader, 0, batchSize)
		indexes = make([]int, 0, batchSize)
	)
	flush := func() error {
		if len(msgs) == 0 {
			return nil
		}
		results, err := dec.DecodeBatch(ctx, msgs, workers)
		if err != nil {
			return err
		}
		for i, res := range results {
			res.SeqNum = headers[i].SeqNum
			res.SendingTime = headers[i].SendingTime
			res.Index = indexes[i]
			stats.Observe(res)
			if err := w.WriteResult(res); err != nil {
				return err
			}
		}
		msgs, headers, indexes = msgs[:0], headers[:0], indexes[:0]
		return nil
	}

	for {
		packet, err := dec.NextPacket(r, &stats)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("capture: %w", err)
		}
		for i, m := range packet.Messages {
			msgs = append(msgs, m)
			headers = append(headers, packet.Header)
			indexes = append(indexes, i)
		}
		if len(msgs) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, w.Flush()
}
