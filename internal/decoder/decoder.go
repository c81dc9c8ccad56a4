// Package decoder turns one raw MQTT message into one DecodedMessage. It
// never fails outward: every problem with a message is reported inside the
// record it returns.
package decoder

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/channel"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/dispatch"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/keys"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/psk"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/wire"
)

type Decoder struct {
	resolver   *channel.Resolver
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger
	now        func() time.Time
}

type Option func(*Decoder)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Decoder) { d.log = l }
}

// WithClock replaces time.Now for messages that carry no receive time.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) { d.now = now }
}

// New builds a decoder over a key table. The table is only read, so one
// decoder may be shared by any number of goroutines.
func New(table *keys.Table, opts ...Option) *Decoder {
	d := &Decoder{
		resolver:   channel.NewResolver(table),
		dispatcher: dispatch.New(),
		log:        zerolog.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) Decode(msg model.RawMessage) (out model.DecodedMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("topic", msg.Topic).Interface("panic", r).Msg("decoder panic")
			out = d.decodeError(msg, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	switch {
	case strings.Contains(msg.Topic, "/stat/"):
		return d.decodeStatus(msg)
	case len(msg.Payload) > 0 && (msg.Payload[0] == '{' || msg.Payload[0] == '['):
		return d.decodeJSON(msg)
	}
	return d.decodeEnvelope(msg)
}

func (d *Decoder) decodeStatus(msg model.RawMessage) model.DecodedMessage {
	node := channel.NodeFromTopic(msg.Topic)
	return model.DecodedMessage{
		PacketType:        model.PacketTypeStatus,
		Channel:           channel.FromTopic(msg.Topic),
		From:              node,
		To:                wire.NodeID(wire.Broadcast),
		Timestamp:         d.receivedAt(msg),
		Fields:            model.NewFields(model.Field{Key: "status", Value: strings.ToValidUTF8(string(msg.Payload), "")}),
		RawData:           msg.Payload,
		DecryptionSuccess: true,
		GatewayID:         node,
	}
}

func (d *Decoder) decodeEnvelope(msg model.RawMessage) model.DecodedMessage {
	env, err := wire.ParseEnvelope(msg.Payload)
	if err != nil {
		d.log.Debug().Err(err).Str("topic", msg.Topic).Int("bytes", len(msg.Payload)).Msg("envelope parse failed")
		return d.decodeError(msg, err.Error())
	}

	topicChannel := channel.FromTopic(msg.Topic)
	name := topicChannel
	if name == channel.Unknown && env.ChannelID != "" {
		name = env.ChannelID
	}

	var data wire.Data
	if env.Encrypted {
		match, ok := d.resolver.Resolve(topicChannel, env.ChannelID, env.ChannelHash)
		if !ok {
			d.log.Debug().Str("channel", name).Uint32("hash", env.ChannelHash).Msg("no key for encrypted packet")
			return d.undecryptable(msg, env, name)
		}
		plain, err := psk.Decrypt(env.Inner, match.Key, env.PacketID, env.From)
		if err == nil {
			data, err = wire.ParseDecryptedData(plain)
		}
		if err != nil {
			d.log.Debug().Err(err).Str("channel", match.Name).Str("by", string(match.By)).Msg("decrypted payload did not parse")
			return d.undecryptable(msg, env, match.Name)
		}
		name = match.Name
	} else {
		data, err = wire.ParseData(env.Inner)
		if err != nil {
			return d.decodeError(msg, fmt.Sprintf("data: %v", err))
		}
	}

	res := d.dispatcher.Dispatch(model.InnerPacket{
		Portnum:  data.Portnum,
		Payload:  data.Payload,
		From:     env.From,
		To:       env.To,
		PacketID: env.PacketID,
		RxTime:   env.RxTime,
	})
	return model.DecodedMessage{
		PacketType:        res.PacketType,
		Channel:           name,
		From:              wire.NodeID(env.From),
		To:                wire.NodeID(env.To),
		Timestamp:         d.timestamp(env.RxTime, msg),
		Fields:            res.Fields,
		RawData:           msg.Payload,
		DecryptionSuccess: true,
		GatewayID:         env.GatewayID,
		PacketID:          env.PacketID,
	}
}

func (d *Decoder) undecryptable(msg model.RawMessage, env model.OuterEnvelope, name string) model.DecodedMessage {
	return model.DecodedMessage{
		PacketType: model.PacketTypeEncrypted,
		Channel:    name,
		From:       wire.NodeID(env.From),
		To:         wire.NodeID(env.To),
		Timestamp:  d.timestamp(env.RxTime, msg),
		Fields:     model.NewFields(model.Field{Key: "status", Value: model.StatusUndecryptable}),
		RawData:    msg.Payload,
		GatewayID:  env.GatewayID,
		PacketID:   env.PacketID,
	}
}

func (d *Decoder) decodeError(msg model.RawMessage, reason string) model.DecodedMessage {
	return model.DecodedMessage{
		PacketType: model.PacketTypeDecodeError,
		Channel:    channel.FromTopic(msg.Topic),
		From:       model.UnknownNode,
		To:         model.UnknownNode,
		Timestamp:  d.receivedAt(msg),
		Fields:     model.NewFields(model.Field{Key: "error", Value: reason}),
		RawData:    msg.Payload,
	}
}

func (d *Decoder) timestamp(rxTime uint32, msg model.RawMessage) time.Time {
	if rxTime != 0 {
		return time.Unix(int64(rxTime), 0).UTC()
	}
	return d.receivedAt(msg)
}

func (d *Decoder) receivedAt(msg model.RawMessage) time.Time {
	if !msg.ReceivedAt.IsZero() {
		return msg.ReceivedAt
	}
	return d.now()
}
