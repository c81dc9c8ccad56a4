// Package handler turns each raw MQTT message into one decoded message and
// fans it out to the configured sinks.
package handler

import (
	"context"
	"encoding/hex"

	"github.com/rs/zerolog"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

type Decoder interface {
	Decode(msg model.RawMessage) model.DecodedMessage
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, msg model.DecodedMessage) error
}

// Recorder receives per-message observations. *metrics.Metrics implements it.
type Recorder interface {
	RecordMessage(msg model.DecodedMessage)
	RecordSinkError(sink string)
}

type nopRecorder struct{}

func (nopRecorder) RecordMessage(model.DecodedMessage) {}
func (nopRecorder) RecordSinkError(string)             {}

type Pipeline struct {
	dec   Decoder
	sinks []Sink
	rec   Recorder
	log   zerolog.Logger
}

// New builds a pipeline; rec may be nil.
func New(dec Decoder, rec Recorder, log zerolog.Logger, sinks ...Sink) *Pipeline {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Pipeline{dec: dec, sinks: sinks, rec: rec, log: log}
}

// Handle decodes one message and publishes it to every sink under ctx. A
// failing sink is logged and counted; it never stops the others or the
// delivery loop.
func (p *Pipeline) Handle(ctx context.Context, raw model.RawMessage) {
	p.log.Debug().
		Str("topic", raw.Topic).
		Int("bytes", len(raw.Payload)).
		Str("payload", truncateHex(raw.Payload, 64)).
		Msg("mqtt rx")

	msg := p.dec.Decode(raw)
	p.rec.RecordMessage(msg)

	ev := p.log.Debug().
		Str("packet_type", msg.PacketType).
		Str("channel", msg.Channel).
		Str("from", msg.From).
		Bool("decrypted", msg.DecryptionSuccess)
	if reason, ok := msg.Fields.Get("error"); ok {
		ev = ev.Interface("error", reason)
	}
	ev.Msg("decoded")

	for _, s := range p.sinks {
		if err := s.Publish(ctx, msg); err != nil {
			p.rec.RecordSinkError(s.Name())
			p.log.Error().Err(err).Str("sink", s.Name()).Str("packet_type", msg.PacketType).Msg("sink publish failed")
		}
	}
}

// truncateHex renders at most n bytes of b as hex, marking the cut.
func truncateHex(b []byte, n int) string {
	if len(b) <= n {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:n]) + "…"
}
