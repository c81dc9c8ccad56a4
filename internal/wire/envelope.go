package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

// ServiceEnvelope field numbers.
const (
	envPacket    protowire.Number = 1
	envChannelID protowire.Number = 2
	envGatewayID protowire.Number = 3
)

// MeshPacket field numbers.
const (
	pktFrom      protowire.Number = 1
	pktTo        protowire.Number = 2
	pktChannel   protowire.Number = 3
	pktDecoded   protowire.Number = 4
	pktEncrypted protowire.Number = 5
	pktID        protowire.Number = 6
	pktRxTime    protowire.Number = 7
	pktRxSNR     protowire.Number = 8
	pktHopLimit  protowire.Number = 9
	pktWantAck   protowire.Number = 10
	pktRxRSSI    protowire.Number = 12
	pktViaMQTT   protowire.Number = 14
	pktHopStart  protowire.Number = 15
)

// ParseEnvelope reads a ServiceEnvelope and its MeshPacket. Payloads that are
// not a ServiceEnvelope are retried as a bare MeshPacket, which some gateways
// publish directly.
func ParseEnvelope(b []byte) (model.OuterEnvelope, error) {
	if len(b) == 0 {
		return model.OuterEnvelope{}, ErrEmpty
	}
	env, err := parseServiceEnvelope(b)
	if err == nil {
		return env, nil
	}

	var bare model.OuterEnvelope
	if perr := parseMeshPacket(b, &bare); perr != nil {
		return model.OuterEnvelope{}, fmt.Errorf("not a service envelope (%v) nor a mesh packet: %w", err, perr)
	}
	return bare, nil
}

func parseServiceEnvelope(b []byte) (model.OuterEnvelope, error) {
	var (
		env    model.OuterEnvelope
		packet []byte
		found  bool
	)
	err := walk(b, func(f field) error {
		switch f.num {
		case envPacket:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			packet, found = f.b, true
		case envChannelID:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			env.ChannelID = f.str()
		case envGatewayID:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			env.GatewayID = f.str()
		}
		return nil
	})
	if err != nil {
		return model.OuterEnvelope{}, err
	}
	if !found {
		return model.OuterEnvelope{}, ErrNoPacket
	}
	if err := parseMeshPacket(packet, &env); err != nil {
		return model.OuterEnvelope{}, fmt.Errorf("mesh packet: %w", err)
	}
	return env, nil
}

func parseMeshPacket(b []byte, env *model.OuterEnvelope) error {
	var hasPayload bool
	err := walk(b, func(f field) error {
		switch f.num {
		case pktFrom, pktTo, pktID, pktRxTime:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			switch f.num {
			case pktFrom:
				env.From = f.u32()
			case pktTo:
				env.To = f.u32()
			case pktID:
				env.PacketID = f.u32()
			case pktRxTime:
				env.RxTime = f.u32()
			}
		case pktChannel, pktHopLimit, pktHopStart, pktRxRSSI, pktViaMQTT, pktWantAck:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case pktChannel:
				env.ChannelHash = f.u32()
			case pktHopLimit:
				env.HopLimit = f.u32()
			case pktHopStart:
				env.HopStart = f.u32()
			case pktRxRSSI:
				env.RxRSSI = f.i32()
			case pktViaMQTT:
				env.ViaMQTT = f.flag()
			}
		case pktRxSNR:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			env.RxSNR = f.f32()
		case pktDecoded, pktEncrypted:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			env.Inner = f.b
			env.Encrypted = f.num == pktEncrypted
			hasPayload = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !hasPayload {
		return ErrNoPayload
	}
	return nil
}

// Packet is the encodable form of a MeshPacket. Exactly one of Decoded and
// Encrypted should be set.
type Packet struct {
	From      uint32
	To        uint32
	Channel   uint32
	ID        uint32
	RxTime    uint32
	RxSNR     float32
	RxRSSI    int32
	HopLimit  uint32
	HopStart  uint32
	WantAck   bool
	ViaMQTT   bool
	Decoded   *Data
	Encrypted []byte
}

func AppendPacket(b []byte, p Packet) []byte {
	b = appendFixed32(b, pktFrom, p.From)
	b = appendFixed32(b, pktTo, p.To)
	b = appendVarint(b, pktChannel, uint64(p.Channel))
	if p.Decoded != nil {
		b = appendMessage(b, pktDecoded, AppendData(nil, *p.Decoded))
	}
	if p.Encrypted != nil {
		b = appendMessage(b, pktEncrypted, p.Encrypted)
	}
	b = appendFixed32(b, pktID, p.ID)
	b = appendFixed32(b, pktRxTime, p.RxTime)
	b = appendFloat(b, pktRxSNR, p.RxSNR)
	b = appendVarint(b, pktHopLimit, uint64(p.HopLimit))
	b = appendBool(b, pktWantAck, p.WantAck)
	b = appendInt32(b, pktRxRSSI, p.RxRSSI)
	b = appendBool(b, pktViaMQTT, p.ViaMQTT)
	b = appendVarint(b, pktHopStart, uint64(p.HopStart))
	return b
}

// AppendEnvelope wraps an encoded MeshPacket into a ServiceEnvelope.
func AppendEnvelope(b []byte, packet []byte, channelID, gatewayID string) []byte {
	b = appendMessage(b, envPacket, packet)
	b = appendString(b, envChannelID, channelID)
	b = appendString(b, envGatewayID, gatewayID)
	return b
}
