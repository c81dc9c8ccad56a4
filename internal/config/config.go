package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/keys"
)

// Defaults match the public community broker the monitor was written for.
const (
	DefaultBrokerURL   = "tcp://mqtt.villagesmesh.com:1883"
	DefaultUsername    = "meshdev"
	DefaultPassword    = "large4cats"
	DefaultTopic       = "msh/US/2/e/#"
	DefaultMetricsAddr = ":9464"
)

var DefaultChannelKeys = []keys.Entry{{Name: "LongFast", Key: "AQ=="}}

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	// MQTT
	MQTTBrokerURL        string
	MQTTClientID         string
	MQTTUsername         string
	MQTTPassword         string
	MQTTTopic            string
	MQTTQoS              byte
	MQTTChannels         []string
	MQTTTLS              bool
	MQTTCACert           string
	MQTTKeepAlive        time.Duration
	MQTTReconnectInitial time.Duration
	MQTTReconnectMax     time.Duration

	// Channel keys, in configuration order.
	ChannelKeys []keys.Entry

	// Kafka; disabled when KafkaBrokers is empty.
	KafkaBrokers           []string
	KafkaTopic             string
	KafkaDLQTopic          string
	KafkaTopicPartitions   int
	KafkaDLQPartitions     int
	KafkaReplicationFactor int
	KafkaCompression       string
	KafkaRequiredAcks      string
	KafkaEnsureTopics      bool

	// Output
	OutputFormat string
	FilterType   string
	FilterText   string

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c *Config) String() string {
	names := make([]string, 0, len(c.ChannelKeys))
	for _, e := range c.ChannelKeys {
		names = append(names, e.Name)
	}
	return fmt.Sprintf(`
MQTT:
  BrokerURL:   %s
  ClientID:    %s
  Username:    %s
  Password:    %s
  Topic:       %s
  QoS:         %d
  Channels:    %v
  TLS:         %t
  KeepAlive:   %s
  Reconnect:   %s..%s

Keys:
  Channels:    %v

Kafka:
  Brokers:           %v
  Topic:             %s
  DLQTopic:          %s
  Partitions:        %d
  DLQPartitions:     %d
  ReplicationFactor: %d
  Compression:       %s
  RequiredAcks:      %s

Output:
  Format:      %s
  FilterType:  %s
  FilterText:  %s
  Metrics:     %s
`, c.MQTTBrokerURL, c.MQTTClientID, c.MQTTUsername, mask(c.MQTTPassword), c.MQTTTopic, c.MQTTQoS,
		c.MQTTChannels, c.MQTTTLS, c.MQTTKeepAlive, c.MQTTReconnectInitial, c.MQTTReconnectMax,
		names,
		c.KafkaBrokers, c.KafkaTopic, c.KafkaDLQTopic, c.KafkaTopicPartitions, c.KafkaDLQPartitions,
		c.KafkaReplicationFactor, c.KafkaCompression, c.KafkaRequiredAcks,
		c.OutputFormat, c.FilterType, c.FilterText, c.MetricsAddr)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// LoadEnvFile exports the variables of a dotenv file without overriding the
// ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type errList []string

func (e *errList) addf(format string, a ...any) {
	*e = append(*e, fmt.Sprintf(format, a...))
}
func (e *errList) add(msg string) { *e = append(*e, msg) }
func (e *errList) has() bool      { return len(*e) > 0 }

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *errList) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		errs.addf("%s invalid (expected int): %q", key, v)
		return def
	}
	return n
}

func getBool(key string, def bool, errs *errList) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		errs.addf("%s invalid (expected bool): %q", key, v)
		return def
	}
	return b
}

func getMillis(key string, def time.Duration, errs *errList) time.Duration {
	n := getInt(key, int(def/time.Millisecond), errs)
	return time.Duration(n) * time.Millisecond
}

func getQoS(key string, errs *errList) byte {
	n := getInt(key, 0, errs)
	if n < 0 || n > 2 {
		errs.addf("%s invalid (0..2): %d", key, n)
		return 0
	}
	return byte(n)
}

func ensureOneOf(key, val string, allowed []string, errs *errList) {
	for _, a := range allowed {
		if val == a {
			return
		}
	}
	errs.addf("%s invalid (allowed: %s): %q", key, strings.Join(allowed, ", "), val)
}

// ParseList splits a comma separated list, dropping blanks.
func ParseList(list string) []string {
	var out []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseChannelKeys reads "name:base64key,name:base64key".
func ParseChannelKeys(list string) ([]keys.Entry, error) {
	var out []keys.Entry
	for _, item := range ParseList(list) {
		name, key, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("channel key %q: expected name:key", item)
		}
		out = append(out, keys.Entry{Name: strings.TrimSpace(name), Key: strings.TrimSpace(key)})
	}
	return out, nil
}

type keysFile struct {
	Encryption struct {
		Channels []keys.Entry `yaml:"channels"`
	} `yaml:"encryption"`
}

// LoadKeysFile reads the encryption.channels list of a YAML file. Other
// sections of the file are ignored.
func LoadKeysFile(path string) ([]keys.Entry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f keysFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Encryption.Channels, nil
}

func loadMQTT(c *Config, errs *errList) {
	c.MQTTBrokerURL = getenv("MQTT_BROKER_URL", DefaultBrokerURL)
	c.MQTTClientID = getenv("MQTT_CLIENT_ID", "meshmon-"+uuid.NewString()[:8])
	c.MQTTUsername = getenv("MQTT_USERNAME", DefaultUsername)
	c.MQTTPassword = getenv("MQTT_PASSWORD", DefaultPassword)
	c.MQTTTopic = getenv("MQTT_TOPIC", DefaultTopic)
	c.MQTTQoS = getQoS("MQTT_QOS", errs)
	c.MQTTChannels = ParseList(os.Getenv("MQTT_CHANNELS"))
	c.MQTTTLS = getBool("MQTT_TLS", false, errs)
	c.MQTTCACert = getenv("MQTT_CA_CERT", "")
	c.MQTTKeepAlive = time.Duration(getInt("MQTT_KEEPALIVE_S", 60, errs)) * time.Second
	c.MQTTReconnectInitial = getMillis("RECONNECT_INITIAL_MS", time.Second, errs)
	c.MQTTReconnectMax = getMillis("RECONNECT_MAX_MS", time.Minute, errs)
}

func loadKeys(c *Config, errs *errList) {
	var entries []keys.Entry
	if path := getenv("MESH_KEYS_FILE", ""); path != "" {
		fromFile, err := LoadKeysFile(path)
		if err != nil {
			errs.addf("MESH_KEYS_FILE: %v", err)
		}
		entries = append(entries, fromFile...)
	}
	if list, ok := os.LookupEnv("MESH_CHANNEL_KEYS"); ok {
		fromEnv, err := ParseChannelKeys(list)
		if err != nil {
			errs.addf("MESH_CHANNEL_KEYS: %v", err)
		}
		entries = append(entries, fromEnv...)
	} else if len(entries) == 0 {
		entries = append(entries, DefaultChannelKeys...)
	}
	c.ChannelKeys = entries
}

func loadKafka(c *Config, errs *errList) {
	c.KafkaBrokers = ParseList(os.Getenv("KAFKA_BROKERS"))
	c.KafkaTopic = getenv("KAFKA_TOPIC", "meshtastic.decoded")
	c.KafkaDLQTopic = getenv("KAFKA_DLQ_TOPIC", "meshtastic.undecoded")
	c.KafkaTopicPartitions = getInt("KAFKA_TOPIC_PARTITIONS", 3, errs)
	c.KafkaDLQPartitions = getInt("KAFKA_DLQ_PARTITIONS", 1, errs)
	c.KafkaReplicationFactor = getInt("KAFKA_REPLICATION_FACTOR", 1, errs)
	c.KafkaCompression = getenv("KAFKA_COMPRESSION", "snappy")
	c.KafkaRequiredAcks = getenv("KAFKA_REQUIRED_ACKS", "one")
	c.KafkaEnsureTopics = getBool("KAFKA_ENSURE_TOPICS", true, errs)
	ensureOneOf("KAFKA_COMPRESSION", c.KafkaCompression, []string{"none", "gzip", "snappy", "lz4", "zstd"}, errs)
	ensureOneOf("KAFKA_REQUIRED_ACKS", c.KafkaRequiredAcks, []string{"none", "one", "all"}, errs)
}

func loadOutput(c *Config, errs *errList) {
	c.OutputFormat = getenv("OUTPUT_FORMAT", "text")
	c.FilterType = getenv("FILTER_TYPE", "")
	c.FilterText = getenv("FILTER_TEXT", "")
	c.MetricsAddr = getenv("METRICS_ADDR", DefaultMetricsAddr)
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.LogFormat = getenv("LOG_FORMAT", "console")
	ensureOneOf("LOG_FORMAT", c.LogFormat, []string{"console", "json"}, errs)
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs.addf("LOG_LEVEL invalid: %q", c.LogLevel)
	}
}

// Validate checks the cross-field rules. It is run by LoadConfig and again
// by callers after applying command-line overrides.
func (c *Config) Validate() error {
	var errs errList
	c.validateSanity(&errs)
	return errs.err()
}

func (c *Config) validateSanity(errs *errList) {
	if u, err := url.Parse(c.MQTTBrokerURL); err != nil || u.Host == "" {
		errs.addf("MQTT_BROKER_URL invalid: %q", c.MQTTBrokerURL)
	} else {
		ensureOneOf("MQTT_BROKER_URL scheme", u.Scheme, []string{"tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss"}, errs)
	}
	if strings.TrimSpace(c.MQTTTopic) == "" {
		errs.add("MQTT_TOPIC must not be empty")
	}
	if c.MQTTKeepAlive <= 0 {
		errs.add("MQTT_KEEPALIVE_S must be > 0")
	}
	if c.MQTTReconnectInitial <= 0 {
		errs.add("RECONNECT_INITIAL_MS must be > 0")
	}
	if c.MQTTReconnectMax < c.MQTTReconnectInitial {
		errs.add("RECONNECT_MAX_MS must be >= RECONNECT_INITIAL_MS")
	}
	if c.OutputFormat != "text" && c.OutputFormat != "json" {
		errs.addf("output format invalid (allowed: text, json): %q", c.OutputFormat)
	}
	if !c.KafkaEnabled() {
		return
	}
	if c.KafkaTopic == "" || c.KafkaDLQTopic == "" {
		errs.add("KAFKA_TOPIC and KAFKA_DLQ_TOPIC must not be empty")
	}
	if c.KafkaTopicPartitions <= 0 {
		errs.add("KAFKA_TOPIC_PARTITIONS must be > 0")
	}
	if c.KafkaDLQPartitions <= 0 {
		errs.add("KAFKA_DLQ_PARTITIONS must be > 0")
	}
	if c.KafkaReplicationFactor <= 0 {
		errs.add("KAFKA_REPLICATION_FACTOR must be > 0")
	}
	if c.KafkaReplicationFactor > len(c.KafkaBrokers) {
		errs.add("KAFKA_REPLICATION_FACTOR cannot exceed the number of KAFKA_BROKERS")
	}
}

func (e errList) err() error {
	if !e.has() {
		return nil
	}
	return fmt.Errorf("%w:\n  %s", ErrInvalid, strings.Join(e, "\n  "))
}

// LoadConfig reads the environment, applying defaults for everything unset.
// Every problem found is reported in the returned error, not just the first.
func LoadConfig() (*Config, error) {
	var errs errList
	c := &Config{}

	loadMQTT(c, &errs)
	loadKeys(c, &errs)
	loadKafka(c, &errs)
	loadOutput(c, &errs)
	c.validateSanity(&errs)

	if err := errs.err(); err != nil {
		return nil, err
	}
	return c, nil
}
