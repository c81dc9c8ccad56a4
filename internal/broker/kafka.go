// Package broker forwards decoded messages to Kafka. Messages that decoded
// go to the main topic keyed by sender node; failures (undecryptable,
// malformed) go to a dead-letter topic with the original payload attached.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/config"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

// messageWriter is the part of *kafka.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaSink struct {
	main messageWriter
	dlq  messageWriter
	now  func() time.Time
	id   func() string
}

func NewKafkaSink(cfg *config.Config, log zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		main: newWriter(cfg, cfg.KafkaTopic, log),
		dlq:  newWriter(cfg, cfg.KafkaDLQTopic, log),
		now:  time.Now,
		id:   uuid.NewString,
	}
}

func newWriter(cfg *config.Config, topic string, log zerolog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    topic,
		Balancer: &kafka.Hash{},

		BatchSize:    500,
		BatchBytes:   1 << 20,
		BatchTimeout: 10 * time.Millisecond,

		RequiredAcks: parseAcks(cfg.KafkaRequiredAcks),
		Async:        true,
		Compression:  parseCompression(cfg.KafkaCompression),
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error().Err(err).Str("topic", topic).Int("messages", len(msgs)).Msg("kafka write failed")
			}
		},
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Publish enqueues the message; with the async writer this returns before
// the broker acknowledges.
func (s *KafkaSink) Publish(ctx context.Context, msg model.DecodedMessage) error {
	rec, dead, err := s.record(msg)
	if err != nil {
		return err
	}
	w := s.main
	if dead {
		w = s.dlq
	}
	if err := w.WriteMessages(ctx, rec); err != nil {
		return fmt.Errorf("kafka publish %s: %w", msg.PacketType, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return errors.Join(s.main.Close(), s.dlq.Close())
}

// deadLetter is the DLQ record body.
type deadLetter struct {
	Error      string    `json:"error"`
	PacketType string    `json:"packetType"`
	Channel    string    `json:"channel"`
	From       string    `json:"from"`
	Original   []byte    `json:"original"`
	Timestamp  time.Time `json:"timestamp"`
}

// IsDeadLetter reports whether a message belongs on the DLQ topic.
func IsDeadLetter(msg model.DecodedMessage) bool {
	switch msg.PacketType {
	case model.PacketTypeDecodeError, model.PacketTypeEncrypted, model.PacketTypeJSONError:
		return true
	}
	return false
}

func (s *KafkaSink) record(msg model.DecodedMessage) (kafka.Message, bool, error) {
	dead := IsDeadLetter(msg)

	var (
		value []byte
		err   error
	)
	if dead {
		value, err = json.Marshal(deadLetter{
			Error:      failureReason(msg),
			PacketType: msg.PacketType,
			Channel:    msg.Channel,
			From:       msg.From,
			Original:   msg.RawData,
			Timestamp:  msg.Timestamp,
		})
	} else {
		value, err = json.Marshal(msg)
	}
	if err != nil {
		return kafka.Message{}, dead, fmt.Errorf("encode %s record: %w", msg.PacketType, err)
	}

	return kafka.Message{
		Key:   []byte(msg.From),
		Value: value,
		Headers: []kafka.Header{
			{Key: "eventId", Value: []byte(s.id())},
			{Key: "packetType", Value: []byte(msg.PacketType)},
			{Key: "receivedAt", Value: []byte(s.now().UTC().Format(time.RFC3339Nano))},
		},
	}, dead, nil
}

func failureReason(msg model.DecodedMessage) string {
	for _, key := range []string{"error", "status"} {
		if v, ok := msg.Fields.Get(key); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return msg.PacketType
}

func parseCompression(s string) kafka.Compression {
	switch strings.ToLower(s) {
	case "", "none", "no", "off", "0":
		return kafka.Compression(0)
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Snappy
	}
}

func parseAcks(s string) kafka.RequiredAcks {
	switch strings.ToLower(s) {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}
