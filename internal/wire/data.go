package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Data field numbers.
const (
	dataPortnum      protowire.Number = 1
	dataPayload      protowire.Number = 2
	dataWantResponse protowire.Number = 3
	dataDest         protowire.Number = 4
	dataSource       protowire.Number = 5
	dataRequestID    protowire.Number = 6
	dataReplyID      protowire.Number = 7
	dataEmoji        protowire.Number = 8
	dataBitfield     protowire.Number = 9
)

// Data is the application payload of a MeshPacket.
type Data struct {
	Portnum      uint32
	Payload      []byte
	WantResponse bool
	Dest         uint32
	Source       uint32
	RequestID    uint32
	ReplyID      uint32
	Emoji        uint32
	Bitfield     uint32

	hasPortnum bool
}

// ParseData reads a plaintext Data message; unknown fields are skipped.
func ParseData(b []byte) (Data, error) {
	return parseData(b, false)
}

// ParseDecryptedData reads Data that came out of the channel cipher. It is
// stricter than ParseData: unknown fields and a missing portnum are errors,
// since that is how a wrong key shows up.
func ParseDecryptedData(b []byte) (Data, error) {
	d, err := parseData(b, true)
	if err != nil {
		return Data{}, err
	}
	if !d.hasPortnum {
		return Data{}, ErrNoPortnum
	}
	return d, nil
}

func parseData(b []byte, strict bool) (Data, error) {
	var d Data
	err := walk(b, func(f field) error {
		switch f.num {
		case dataPortnum, dataWantResponse, dataBitfield:
			if err := f.want(protowire.VarintType); err != nil {
				return err
			}
			switch f.num {
			case dataPortnum:
				d.Portnum, d.hasPortnum = f.u32(), true
			case dataWantResponse:
				d.WantResponse = f.flag()
			case dataBitfield:
				d.Bitfield = f.u32()
			}
		case dataPayload:
			if err := f.want(protowire.BytesType); err != nil {
				return err
			}
			d.Payload = f.b
		case dataDest, dataSource, dataRequestID, dataReplyID, dataEmoji:
			if err := f.want(protowire.Fixed32Type); err != nil {
				return err
			}
			switch f.num {
			case dataDest:
				d.Dest = f.u32()
			case dataSource:
				d.Source = f.u32()
			case dataRequestID:
				d.RequestID = f.u32()
			case dataReplyID:
				d.ReplyID = f.u32()
			case dataEmoji:
				d.Emoji = f.u32()
			}
		default:
			if strict {
				return fmt.Errorf("%w: data field %d", ErrUnknownField, f.num)
			}
		}
		return nil
	})
	return d, err
}

func AppendData(b []byte, d Data) []byte {
	b = appendVarint(b, dataPortnum, uint64(d.Portnum))
	b = appendBytes(b, dataPayload, d.Payload)
	b = appendBool(b, dataWantResponse, d.WantResponse)
	b = appendFixed32(b, dataDest, d.Dest)
	b = appendFixed32(b, dataSource, d.Source)
	b = appendFixed32(b, dataRequestID, d.RequestID)
	b = appendFixed32(b, dataReplyID, d.ReplyID)
	b = appendFixed32(b, dataEmoji, d.Emoji)
	b = appendVarint(b, dataBitfield, uint64(d.Bitfield))
	return b
}
