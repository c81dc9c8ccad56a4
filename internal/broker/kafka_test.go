package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/config"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestSink() (*KafkaSink, *fakeWriter, *fakeWriter) {
	main, dlq := &fakeWriter{}, &fakeWriter{}
	return &KafkaSink{
		main: main,
		dlq:  dlq,
		now:  func() time.Time { return fixedNow },
		id:   func() string { return "evt-1" },
	}, main, dlq
}

func headers(m kafka.Message) map[string]string {
	out := make(map[string]string, len(m.Headers))
	for _, h := range m.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestPublish_DecodedGoesToMainTopic(t *testing.T) {
	sink, main, dlq := newTestSink()
	msg := model.DecodedMessage{
		PacketType:        "TEXT_MESSAGE_APP",
		Channel:           "LongFast",
		From:              "!a1b2c3d4",
		To:                "!ffffffff",
		Timestamp:         fixedNow,
		Fields:            model.NewFields(model.Field{Key: "text", Value: "hi"}),
		DecryptionSuccess: true,
	}

	require.NoError(t, sink.Publish(context.Background(), msg))

	require.Len(t, main.msgs, 1)
	assert.Empty(t, dlq.msgs)
	rec := main.msgs[0]
	assert.Equal(t, "!a1b2c3d4", string(rec.Key))
	assert.Equal(t, map[string]string{
		"eventId":    "evt-1",
		"packetType": "TEXT_MESSAGE_APP",
		"receivedAt": "2024-05-01T12:00:00Z",
	}, headers(rec))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "LongFast", body["channel"])
	assert.Equal(t, map[string]any{"text": "hi"}, body["fields"])
}

func TestPublish_FailuresGoToDLQ(t *testing.T) {
	tests := []struct {
		name   string
		msg    model.DecodedMessage
		reason string
	}{
		{
			name: "undecryptable",
			msg: model.DecodedMessage{
				PacketType: model.PacketTypeEncrypted,
				From:       "!00000001",
				Fields:     model.NewFields(model.Field{Key: "status", Value: model.StatusUndecryptable}),
				RawData:    []byte{0xde, 0xad},
			},
			reason: model.StatusUndecryptable,
		},
		{
			name: "decode error",
			msg: model.DecodedMessage{
				PacketType: model.PacketTypeDecodeError,
				From:       model.UnknownNode,
				Fields:     model.NewFields(model.Field{Key: "error", Value: "envelope: truncated"}),
				RawData:    []byte{0x0a},
			},
			reason: "envelope: truncated",
		},
		{
			name:   "json error without fields",
			msg:    model.DecodedMessage{PacketType: model.PacketTypeJSONError, RawData: []byte("{")},
			reason: model.PacketTypeJSONError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink, main, dlq := newTestSink()
			require.NoError(t, sink.Publish(context.Background(), tt.msg))

			assert.Empty(t, main.msgs)
			require.Len(t, dlq.msgs, 1)
			var body deadLetter
			require.NoError(t, json.Unmarshal(dlq.msgs[0].Value, &body))
			assert.Equal(t, tt.reason, body.Error)
			assert.Equal(t, tt.msg.PacketType, body.PacketType)
			assert.Equal(t, tt.msg.RawData, body.Original)
		})
	}
}

func TestPublish_WriterError(t *testing.T) {
	sink, main, _ := newTestSink()
	main.err = errors.New("queue full")

	err := sink.Publish(context.Background(), model.DecodedMessage{PacketType: "POSITION"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestClose(t *testing.T) {
	sink, main, dlq := newTestSink()
	require.NoError(t, sink.Close())
	assert.True(t, main.closed)
	assert.True(t, dlq.closed)
}

func TestNewKafkaSink_WriterSettings(t *testing.T) {
	cfg := &config.Config{
		KafkaBrokers:      []string{"k1:9092"},
		KafkaTopic:        "mesh.decoded",
		KafkaDLQTopic:     "mesh.dlq",
		KafkaCompression:  "zstd",
		KafkaRequiredAcks: "all",
	}
	sink := NewKafkaSink(cfg, zerolog.Nop())
	defer sink.Close()

	main, ok := sink.main.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "mesh.decoded", main.Topic)
	assert.True(t, main.Async)
	assert.Equal(t, kafka.RequireAll, main.RequiredAcks)
	assert.Equal(t, kafka.Zstd, main.Compression)
	assert.Equal(t, "mesh.dlq", sink.dlq.(*kafka.Writer).Topic)
	assert.Equal(t, "kafka", sink.Name())
}

func TestParseSettings(t *testing.T) {
	assert.Equal(t, kafka.Compression(0), parseCompression("none"))
	assert.Equal(t, kafka.Gzip, parseCompression("GZIP"))
	assert.Equal(t, kafka.Lz4, parseCompression("lz4"))
	assert.Equal(t, kafka.Snappy, parseCompression("brotli"))

	assert.Equal(t, kafka.RequireNone, parseAcks("none"))
	assert.Equal(t, kafka.RequireOne, parseAcks("one"))
	assert.Equal(t, kafka.RequireAll, parseAcks("ALL"))
}

func TestTopicConfigs(t *testing.T) {
	cfg := &config.Config{
		KafkaTopic:             "mesh.decoded",
		KafkaDLQTopic:          "mesh.dlq",
		KafkaTopicPartitions:   6,
		KafkaDLQPartitions:     1,
		KafkaReplicationFactor: 3,
		KafkaCompression:       "none",
	}
	got := topicConfigs(cfg)
	require.Len(t, got, 2)
	assert.Equal(t, "mesh.decoded", got[0].Topic)
	assert.Equal(t, 6, got[0].NumPartitions)
	assert.Equal(t, "mesh.dlq", got[1].Topic)
	assert.Equal(t, 1, got[1].NumPartitions)
	assert.Equal(t, 3, got[1].ReplicationFactor)
	assert.Equal(t, "producer", got[0].ConfigEntries[0].ConfigValue)
	assert.Equal(t, "snappy", topicCompression("snappy"))
}
