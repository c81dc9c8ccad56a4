package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/broker"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/config"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/decoder"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/handler"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/keys"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/metrics"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/mqtt"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/output"
	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/runtime"
)

type flags struct {
	envFile    string
	topic      string
	channels   string
	filterType string
	filterText string
	format     string
	verbose    bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("meshmon", flag.ContinueOnError)
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fs.StringVar(&f.topic, "topic", "", "MQTT topic filter (overrides MQTT_TOPIC)")
	fs.StringVar(&f.channels, "channels", "", "comma separated channels to subscribe to (overrides MQTT_CHANNELS)")
	fs.StringVar(&f.filterType, "filter-type", "", "only show this packet type, e.g. POSITION")
	fs.StringVar(&f.filterText, "filter-text", "", "only show lines containing this text (case-insensitive)")
	fs.StringVar(&f.format, "format", "", "output format: text or json")
	fs.BoolVar(&f.verbose, "verbose", false, "debug logging")
	return f, fs.Parse(args)
}

func (f flags) apply(cfg *config.Config) {
	if f.topic != "" {
		cfg.MQTTTopic = f.topic
	}
	if f.channels != "" {
		cfg.MQTTChannels = config.ParseList(f.channels)
	}
	if f.filterType != "" {
		cfg.FilterType = f.filterType
	}
	if f.filterText != "" {
		cfg.FilterText = f.filterText
	}
	if f.format != "" {
		cfg.OutputFormat = f.format
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

func main() {
	boot := config.NewLogger("info", "console", os.Stderr)

	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := config.LoadEnvFile(f.envFile); err != nil {
		boot.Fatal().Err(err).Msg("env file error")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("config error")
	}

	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("monitor stopped")
	}
	log.Info().Msg("monitor stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msgf("meshtastic mqtt monitor starting%s", cfg)
	if cfg.FilterType != "" {
		log.Info().Str("packet_type", cfg.FilterType).Msg("filter: only showing this packet type")
	}
	if cfg.FilterText != "" {
		log.Info().Str("text", cfg.FilterText).Msg("filter: only showing messages containing text")
	}

	table, err := keys.New(cfg.ChannelKeys)
	if err != nil {
		log.Warn().Err(err).Msg("some channel keys were rejected")
	}
	log.Info().Int("channels", table.Len()).Msg("channel key table ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runtime.SetupGracefulShutdown(cancel, log)

	m := metrics.New()
	sinks := []handler.Sink{
		output.NewConsole(os.Stdout, cfg.OutputFormat, output.Filter{Type: cfg.FilterType, Text: cfg.FilterText}),
	}
	if cfg.KafkaEnabled() {
		if cfg.KafkaEnsureTopics {
			if err := broker.EnsureTopics(ctx, cfg, log); err != nil {
				return fmt.Errorf("kafka ensure topics: %w", err)
			}
		}
		kafkaSink := broker.NewKafkaSink(cfg, log)
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				log.Error().Err(err).Msg("kafka close")
			}
		}()
		sinks = append(sinks, kafkaSink)
	}

	pipeline := handler.New(decoder.New(table, decoder.WithLogger(log)), m, log, sinks...)

	dialer, err := newDialer(cfg, log)
	if err != nil {
		return err
	}
	mgr := mqtt.NewManager(mqtt.Options{
		Dialer:  dialer,
		Filters: mqtt.SubscriptionFilters(cfg.MQTTTopic, cfg.MQTTChannels),
		QoS:     cfg.MQTTQoS,
		Backoff: mqtt.Backoff{Initial: cfg.MQTTReconnectInitial, Max: cfg.MQTTReconnectMax},
		Handler: func(raw model.RawMessage) { pipeline.Handle(ctx, raw) },
		OnStateChange: func(st mqtt.Status) {
			m.RecordState(st)
			log.Info().Str("state", st.String()).Msg("mqtt connection state")
		},
		Logger: log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return mgr.Run(gctx)
	})
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != "off" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, m, mgr, log)
		})
	}
	return g.Wait()
}

func newDialer(cfg *config.Config, log zerolog.Logger) (*mqtt.PahoDialer, error) {
	brokerURL, secure, err := brokerAddress(cfg.MQTTBrokerURL, cfg.MQTTTLS)
	if err != nil {
		return nil, err
	}
	pc := mqtt.PahoConfig{
		BrokerURL: brokerURL,
		ClientID:  cfg.MQTTClientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		KeepAlive: cfg.MQTTKeepAlive,
	}
	if secure {
		if pc.TLS, err = mqtt.LoadTLSConfig(cfg.MQTTCACert); err != nil {
			return nil, err
		}
	}
	return mqtt.NewPahoDialer(pc, log), nil
}

// brokerAddress upgrades a plain tcp:// or mqtt:// URL to ssl:// when TLS is
// requested and reports whether the connection is encrypted.
func brokerAddress(raw string, useTLS bool) (string, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("broker url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "ssl", "tls", "mqtts", "wss":
		return raw, true, nil
	case "tcp", "mqtt":
		if useTLS {
			u.Scheme = "ssl"
			return u.String(), true, nil
		}
		return raw, false, nil
	case "ws":
		if useTLS {
			u.Scheme = "wss"
			return u.String(), true, nil
		}
		return raw, false, nil
	}
	return "", false, errors.New("broker url: unsupported scheme " + u.Scheme)
}
