package model

import "time"

// Packet types that describe a failure instead of a payload kind.
const (
	PacketTypeDecodeError = "DECODE_ERROR"
	PacketTypeEncrypted   = "ENCRYPTED"
	PacketTypeUnknown     = "UNKNOWN"
	PacketTypeStatus      = "STATUS"
	PacketTypeJSONError   = "JSON_ERROR"
)

// StatusUndecryptable is the status text carried by ENCRYPTED messages.
const StatusUndecryptable = "Unable to decrypt or decode"

const UnknownNode = "unknown"

type RawMessage struct {
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// OuterEnvelope is the ServiceEnvelope plus the MeshPacket header. Inner holds
// either the plaintext Data encoding or its ciphertext, depending on Encrypted.
type OuterEnvelope struct {
	ChannelHash uint32
	ChannelID   string
	GatewayID   string
	Encrypted   bool
	Inner       []byte

	From     uint32
	To       uint32
	PacketID uint32
	RxTime   uint32
	HopLimit uint32
	HopStart uint32
	RxSNR    float32
	RxRSSI   int32
	ViaMQTT  bool
}

type InnerPacket struct {
	Portnum  uint32
	Payload  []byte
	From     uint32
	To       uint32
	PacketID uint32
	RxTime   uint32
}

type DecodedMessage struct {
	PacketType        string    `json:"packetType"`
	Channel           string    `json:"channel"`
	From              string    `json:"from"`
	To                string    `json:"to"`
	Timestamp         time.Time `json:"timestamp"`
	Fields            Fields    `json:"fields"`
	RawData           []byte    `json:"rawData"`
	DecryptionSuccess bool      `json:"decryptionSuccess"`
	GatewayID         string    `json:"gatewayId,omitempty"`
	PacketID          uint32    `json:"packetId,omitempty"`
}
