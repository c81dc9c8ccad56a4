package decoder

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/dispatch"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/keys"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/psk"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/wire"
)

const longFastTopic = "msh/US/2/e/LongFast/!abc"

var received = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTable(t *testing.T, entries ...keys.Entry) *keys.Table {
	t.Helper()
	table, err := keys.New(entries)
	require.NoError(t, err)
	return table
}

func longFast(t *testing.T) *keys.Table {
	return newTable(t, keys.Entry{Name: "LongFast", Key: "AQ=="})
}

type fixture struct {
	from, to, id, rxTime uint32
	hash                 uint32
	channelID            string
	data                 wire.Data
	key                  []byte // encrypt with this key when set
}

func (f fixture) encode(t *testing.T) []byte {
	t.Helper()
	p := wire.Packet{From: f.from, To: f.to, ID: f.id, RxTime: f.rxTime, Channel: f.hash}
	if f.key != nil {
		ct, err := psk.Encrypt(wire.AppendData(nil, f.data), f.key, f.id, f.from)
		require.NoError(t, err)
		p.Encrypted = ct
	} else {
		data := f.data
		p.Decoded = &data
	}
	return wire.AppendEnvelope(nil, wire.AppendPacket(nil, p), f.channelID, "!gateway1")
}

func raw(topic string, payload []byte) model.RawMessage {
	return model.RawMessage{Topic: topic, Payload: payload, ReceivedAt: received}
}

func scenarioPosition() wire.Data {
	return wire.Data{
		Portnum: wire.PortPosition,
		Payload: wire.AppendPosition(nil, wire.Position{
			LatitudeI:  377749000,
			LongitudeI: -1224194000,
			Altitude:   15,
		}),
	}
}

func assertPositionFields(t *testing.T, fields model.Fields) {
	t.Helper()
	assert.Equal(t, []string{"latitude", "longitude", "altitude"}, fields.Keys())
	lat, _ := fields.Get("latitude")
	lon, _ := fields.Get("longitude")
	alt, _ := fields.Get("altitude")
	assert.Equal(t, 37.7749, lat)
	assert.Equal(t, -122.4194, lon)
	assert.Equal(t, int32(15), alt)
}

func TestDecode_PlaintextPosition(t *testing.T) {
	d := New(longFast(t))
	payload := fixture{from: 0xabc, to: wire.Broadcast, id: 1, data: scenarioPosition()}.encode(t)

	got := d.Decode(raw(longFastTopic, payload))

	assert.Equal(t, "POSITION", got.PacketType)
	assert.Equal(t, "LongFast", got.Channel)
	assert.True(t, got.DecryptionSuccess)
	assert.Equal(t, "!00000abc", got.From)
	assert.Equal(t, "!ffffffff", got.To)
	assert.Equal(t, "!gateway1", got.GatewayID)
	assertPositionFields(t, got.Fields)
	assert.Equal(t, payload, got.RawData)
}

func TestDecode_EncryptedPositionWithDefaultKey(t *testing.T) {
	table := longFast(t)
	ch, ok := table.Lookup("LongFast")
	require.True(t, ok)

	d := New(table)
	payload := fixture{from: 0xabc, to: wire.Broadcast, id: 0x1234, hash: ch.Hash, key: ch.Key, data: scenarioPosition()}.encode(t)

	got := d.Decode(raw(longFastTopic, payload))

	assert.Equal(t, "POSITION", got.PacketType)
	assert.Equal(t, "LongFast", got.Channel)
	assert.True(t, got.DecryptionSuccess)
	assert.Equal(t, uint32(0x1234), got.PacketID)
	assertPositionFields(t, got.Fields)
}

func TestDecode_EncryptedWithoutKey(t *testing.T) {
	d := New(newTable(t))
	payload := fixture{from: 1, id: 2, hash: 8, key: psk.DefaultKey, data: scenarioPosition()}.encode(t)

	got := d.Decode(raw(longFastTopic, payload))

	assert.Equal(t, model.PacketTypeEncrypted, got.PacketType)
	assert.False(t, got.DecryptionSuccess)
	assert.Equal(t, model.NewFields(model.Field{Key: "status", Value: model.StatusUndecryptable}), got.Fields)
	assert.Equal(t, "LongFast", got.Channel)
	assert.Equal(t, "!00000001", got.From)
}

func TestDecode_WrongKeyIsUndecryptable(t *testing.T) {
	d := New(longFast(t))
	other := bytes.Repeat([]byte{0x42}, 16)
	data := wire.Data{Portnum: wire.PortTextMessage, Payload: []byte("the quick brown fox jumps over the lazy dog")}
	payload := fixture{from: 7, id: 99, key: other, data: data}.encode(t)

	got := d.Decode(raw(longFastTopic, payload))

	assert.Equal(t, model.PacketTypeEncrypted, got.PacketType)
	assert.False(t, got.DecryptionSuccess)
	assert.Equal(t, payload, got.RawData)
}

func TestDecode_ResolvesByHashWhenTopicUnknown(t *testing.T) {
	table := newTable(t,
		keys.Entry{Name: "Private", Key: "c2VjcmV0c2VjcmV0c2VjcmV0"},
		keys.Entry{Name: "LongFast", Key: "AQ=="},
	)
	ch, _ := table.Lookup("LongFast")
	d := New(table)
	data := wire.Data{Portnum: wire.PortTextMessage, Payload: []byte("hi")}
	payload := fixture{from: 3, id: 4, hash: ch.Hash, key: ch.Key, data: data}.encode(t)

	got := d.Decode(raw("msh/US/2/e/longfast/!abc", payload))

	assert.Equal(t, "TEXT_MESSAGE_APP", got.PacketType)
	assert.Equal(t, "LongFast", got.Channel)
	assert.True(t, got.DecryptionSuccess)
}

func TestDecode_CorruptedEnvelope(t *testing.T) {
	d := New(longFast(t))
	full := fixture{from: 1, id: 2, data: scenarioPosition()}.encode(t)

	for name, payload := range map[string][]byte{
		"truncated": full[:len(full)-4],
		"garbage":   {0xff, 0xff, 0xff, 0xff},
		"empty":     {},
	} {
		t.Run(name, func(t *testing.T) {
			original := bytes.Clone(payload)
			got := d.Decode(raw(longFastTopic, payload))

			assert.Equal(t, model.PacketTypeDecodeError, got.PacketType)
			assert.False(t, got.DecryptionSuccess)
			assert.Equal(t, original, got.RawData)
			assert.Equal(t, model.UnknownNode, got.From)
			_, ok := got.Fields.Get("error")
			assert.True(t, ok)
		})
	}
}

func TestDecode_UnknownPortnum(t *testing.T) {
	d := New(longFast(t))
	payload := fixture{from: 1, id: 2, data: wire.Data{Portnum: 999, Payload: []byte{1}}}.encode(t)

	got := d.Decode(raw(longFastTopic, payload))

	assert.Equal(t, model.PacketTypeUnknown, got.PacketType)
	assert.True(t, got.DecryptionSuccess)
	assert.Equal(t, model.NewFields(model.Field{Key: "portnum", Value: uint32(999)}), got.Fields)
}

func TestDecode_EveryRegisteredPortnum(t *testing.T) {
	d := New(longFast(t))
	reg := dispatch.New()
	rng := rand.New(rand.NewSource(7))

	for port := uint32(1); port <= 80; port++ {
		want := reg.PacketType(port)
		if want == model.PacketTypeUnknown {
			continue
		}
		body := make([]byte, rng.Intn(64))
		rng.Read(body)
		for _, key := range [][]byte{nil, psk.DefaultKey} {
			payload := fixture{from: rng.Uint32(), id: rng.Uint32(), key: key, data: wire.Data{Portnum: port, Payload: body}}.encode(t)
			got := d.Decode(raw(longFastTopic, payload))
			assert.True(t, got.DecryptionSuccess, "port %d", port)
			assert.Equal(t, want, got.PacketType, "port %d", port)
		}
	}
}

func TestDecode_Timestamp(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	d := New(longFast(t), WithClock(func() time.Time { return fixed }))
	data := wire.Data{Portnum: wire.PortTextMessage, Payload: []byte("x")}

	withRx := fixture{from: 1, id: 1, rxTime: 1700000000, data: data}.encode(t)
	got := d.Decode(raw(longFastTopic, withRx))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), got.Timestamp)

	noRx := fixture{from: 1, id: 1, data: data}.encode(t)
	got = d.Decode(raw(longFastTopic, noRx))
	assert.Equal(t, received, got.Timestamp)

	got = d.Decode(model.RawMessage{Topic: longFastTopic, Payload: noRx})
	assert.Equal(t, fixed, got.Timestamp)
}

func TestDecode_StatusTopic(t *testing.T) {
	d := New(newTable(t))
	got := d.Decode(raw("msh/US/2/stat/!aabbccdd", []byte("online")))

	assert.Equal(t, model.PacketTypeStatus, got.PacketType)
	assert.Equal(t, "!aabbccdd", got.From)
	assert.True(t, got.DecryptionSuccess)
	status, _ := got.Fields.Get("status")
	assert.Equal(t, "online", status)
}

func TestDecode_JSONPayload(t *testing.T) {
	d := New(newTable(t))
	body := `{"from":2882400001,"to":4294967295,"type":"sendtext","channel":0,"payload":{"text":"hello","extra":1},"sender":"!abcdef01"}`

	got := d.Decode(raw("msh/US/2/json/LongFast/!abcdef01", []byte(body)))

	assert.Equal(t, "TEXT_MESSAGE_APP", got.PacketType)
	assert.Equal(t, "LongFast", got.Channel)
	assert.Equal(t, "!abcdef01", got.From)
	assert.Equal(t, "!ffffffff", got.To)
	assert.True(t, got.DecryptionSuccess)
	assert.Equal(t, []string{"text", "extra", "channel", "sender"}, got.Fields.Keys())

	text, _ := got.Fields.Get("text")
	assert.Equal(t, "hello", text)
	extra, _ := got.Fields.Get("extra")
	assert.Equal(t, json.Number("1"), extra)
}

func TestDecode_JSONScalarPayloadAndUnknownType(t *testing.T) {
	d := New(newTable(t))
	got := d.Decode(raw("msh/US/2/json/LongFast/!1", []byte(`{"type":"custom","payload":"raw text","from":"!00000001"}`)))

	assert.Equal(t, "custom", got.PacketType)
	assert.Equal(t, "!00000001", got.From)
	assert.Equal(t, model.UnknownNode, got.To)
	p, _ := got.Fields.Get("payload")
	assert.Equal(t, "raw text", p)
}

func TestDecode_InvalidJSON(t *testing.T) {
	d := New(newTable(t))
	bodies := []string{
		`{"type":`,
		`[1,2,3]`,
		`{"a":1} trailing`,
		`{"type":"text"}]`,
		`{"type":"text"}}`,
		`{"type":"text"} {}`,
	}
	for _, body := range bodies {
		got := d.Decode(raw("msh/US/2/json/LongFast/!1", []byte(body)))
		assert.Equal(t, model.PacketTypeJSONError, got.PacketType, body)
		assert.False(t, got.DecryptionSuccess)
		assert.Equal(t, []byte(body), got.RawData)
	}
}

func TestDecode_JSONTrailingWhitespace(t *testing.T) {
	d := New(newTable(t))
	got := d.Decode(raw("msh/US/2/json/LongFast/!1", []byte("{\"type\":\"text\",\"payload\":\"hi\"}\r\n ")))
	assert.Equal(t, "TEXT_MESSAGE_APP", got.PacketType)
}

func TestDecode_IsStateless(t *testing.T) {
	table := longFast(t)
	ch, _ := table.Lookup("LongFast")
	d := New(table)
	payload := fixture{from: 5, id: 6, hash: ch.Hash, key: ch.Key, data: scenarioPosition()}.encode(t)

	first := d.Decode(raw(longFastTopic, payload))
	d.Decode(raw(longFastTopic, []byte{0xff}))
	again := d.Decode(raw(longFastTopic, payload))
	assert.Equal(t, first, again)
}
