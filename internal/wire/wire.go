// Package wire reads and writes the Meshtastic protobuf messages carried
// over MQTT: ServiceEnvelope, MeshPacket, Data and the per-port payload
// schemas. It works directly on the wire format with protowire, so only the
// fields the monitor understands are modelled; everything else is skipped.
//
// The monitor itself only parses. The Append* encoders build fixtures and
// synthetic traffic for tests in this and dependent packages; parsers are
// additionally pinned by literal golden bytes that never pass through them.
package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrEmpty        = errors.New("wire: empty message")
	ErrTruncated    = errors.New("wire: truncated or malformed field")
	ErrWireType     = errors.New("wire: unexpected wire type")
	ErrUnknownField = errors.New("wire: unknown field")
	ErrNoPacket     = errors.New("wire: envelope carries no packet")
	ErrNoPayload    = errors.New("wire: packet has neither decoded nor encrypted payload")
	ErrNoPortnum    = errors.New("wire: data has no portnum")
)

// Broadcast is the destination address of packets sent to every node.
const Broadcast uint32 = 0xffffffff

// NodeID renders a node number the way Meshtastic clients do: !%08x.
func NodeID(n uint32) string {
	return fmt.Sprintf("!%08x", n)
}

type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

// walk calls fn for every field of one encoded message. Groups are rejected:
// no Meshtastic message uses them and garbage input often decodes as one.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			return fmt.Errorf("%w: field %d has wire type %d", ErrWireType, num, typ)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (f field) want(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrWireType, f.num, f.typ, typ)
	}
	return nil
}

func (f field) u32() uint32 { return uint32(f.u) }
func (f field) i32() int32 { return int32(int64(f.u)) }
func (f field) sfixed32() int32 { return int32(uint32(f.u)) }
func (f field) sint32() int32 { return int32(protowire.DecodeZigZag(f.u)) }
func (f field) flag() bool { return f.u != 0 }
func (f field) f32() float32 { return math.Float32frombits(uint32(f.u)) }
func (f field) str() string { return string(f.b) }

// packed decodes a repeated scalar field that may arrive packed (bytes) or
// as a single unpacked element.
func (f field) packed(elem protowire.Type) ([]uint64, error) {
	if f.typ == elem {
		return []uint64{f.u}, nil
	}
	if err := f.want(protowire.BytesType); err != nil {
		return nil, err
	}
	var out []uint64
	b := f.b
	for len(b) > 0 {
		var (
			v uint64
			n int
		)
		switch elem {
		case protowire.VarintType:
			v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v32 uint32
			v32, n = protowire.ConsumeFixed32(b)
			v = uint64(v32)
		default:
			return nil, fmt.Errorf("%w: packed field %d", ErrWireType, f.num)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: packed field %d: %v", ErrTruncated, f.num, protowire.ParseError(n))
		}
		out = append(out, v)
		b = b[n:]
	}
	return out, nil
}

// encoding helpers; zero values are omitted as proto3 does.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendSint32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, protowire.EncodeZigZag(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendFixed32(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendSfixed32(b []byte, num protowire.Number, v int32) []byte {
	return appendFixed32(b, num, uint32(v))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	return appendFixed32(b, num, math.Float32bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendMessage always writes the field, even for an empty message, so that
// presence survives the round trip.
func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
