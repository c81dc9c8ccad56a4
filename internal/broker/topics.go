package broker

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/config"
)

// EnsureTopics creates the main and dead-letter topics when they are missing.
func EnsureTopics(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	bootstrap := cfg.KafkaBrokers[0]
	log.Info().Str("bootstrap", bootstrap).Msg("kafka ensuring topics")

	conn, err := kafka.DialContext(ctx, "tcp", bootstrap)
	if err != nil {
		return fmt.Errorf("dial %s: %w", bootstrap, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	ctrlAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrlConn, err := kafka.DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", ctrlAddr, err)
	}
	defer ctrlConn.Close()

	for _, tc := range topicConfigs(cfg) {
		if parts, err := conn.ReadPartitions(tc.Topic); err == nil && len(parts) > 0 {
			log.Info().Str("topic", tc.Topic).Msg("kafka topic already exists, skipping")
			continue
		}
		log.Info().Str("topic", tc.Topic).Int("partitions", tc.NumPartitions).
			Int("replication", tc.ReplicationFactor).Msg("kafka creating topic")
		if err := ctrlConn.CreateTopics(tc); err != nil {
			return fmt.Errorf("create topic %s: %w", tc.Topic, err)
		}
	}
	return nil
}

func topicConfigs(cfg *config.Config) []kafka.TopicConfig {
	entries := []kafka.ConfigEntry{{ConfigName: "compression.type", ConfigValue: topicCompression(cfg.KafkaCompression)}}
	return []kafka.TopicConfig{
		{
			Topic:             cfg.KafkaTopic,
			NumPartitions:     cfg.KafkaTopicPartitions,
			ReplicationFactor: cfg.KafkaReplicationFactor,
			ConfigEntries:     entries,
		},
		{
			Topic:             cfg.KafkaDLQTopic,
			NumPartitions:     cfg.KafkaDLQPartitions,
			ReplicationFactor: cfg.KafkaReplicationFactor,
			ConfigEntries:     entries,
		},
	}
}

// topicCompression maps the producer setting to a broker compression.type.
func topicCompression(s string) string {
	switch s {
	case "gzip", "snappy", "lz4", "zstd":
		return s
	default:
		return "producer"
	}
}
