package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/rs/zerolog"
)

// PahoConfig carries the broker settings for the production dialer.
type PahoConfig struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	TLS            *tls.Config
}

// PahoDialer connects with eclipse/paho. Paho's own reconnect logic is
// disabled: the Manager decides when to dial again.
type PahoDialer struct {
	cfg PahoConfig
	log zerolog.Logger
}

func NewPahoDialer(cfg PahoConfig, log zerolog.Logger) *PahoDialer {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &PahoDialer{cfg: cfg, log: log}
}

func (d *PahoDialer) Dial(ctx context.Context) (Session, error) {
	lost := make(chan error, 1)

	opts := paho.NewClientOptions().
		AddBroker(d.cfg.BrokerURL).
		SetClientID(d.cfg.ClientID).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetKeepAlive(d.cfg.KeepAlive).
		SetPingTimeout(10 * time.Second).
		SetConnectTimeout(d.cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false)

	if d.cfg.Username != "" {
		opts.SetUsername(d.cfg.Username)
	}
	if d.cfg.Password != "" {
		opts.SetPassword(d.cfg.Password)
	}
	if d.cfg.TLS != nil {
		opts.SetTLSConfig(d.cfg.TLS)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	}

	client := paho.NewClient(opts)
	d.log.Debug().Str("broker", d.cfg.BrokerURL).Str("client_id", d.cfg.ClientID).Msg("mqtt dialing")

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		if isAuthFailure(token, err) {
			return nil, &AuthError{Broker: d.cfg.BrokerURL, Err: err}
		}
		return nil, fmt.Errorf("mqtt connect %s: %w", d.cfg.BrokerURL, err)
	}
	return &pahoSession{client: client, lost: lost, timeout: d.cfg.ConnectTimeout}, nil
}

func isAuthFailure(token paho.Token, err error) bool {
	if ct, ok := token.(*paho.ConnectToken); ok {
		switch ct.ReturnCode() {
		case packets.ErrRefusedBadUsernameOrPassword, packets.ErrRefusedNotAuthorised:
			return true
		}
	}
	return errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) ||
		errors.Is(err, packets.ErrorRefusedNotAuthorised)
}

type pahoSession struct {
	client  paho.Client
	lost    chan error
	timeout time.Duration
	filters []string
}

func (s *pahoSession) Subscribe(filters []string, qos byte, deliver func(topic string, payload []byte)) error {
	subs := make(map[string]byte, len(filters))
	for _, f := range filters {
		subs[f] = qos
	}
	token := s.client.SubscribeMultiple(subs, func(_ paho.Client, msg paho.Message) {
		deliver(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(s.timeout) {
		return fmt.Errorf("mqtt subscribe %v: timed out after %s", filters, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %v: %w", filters, err)
	}
	s.filters = filters
	return nil
}

func (s *pahoSession) Lost() <-chan error { return s.lost }

func (s *pahoSession) Close() {
	if s.client.IsConnectionOpen() && len(s.filters) > 0 {
		s.client.Unsubscribe(s.filters...).WaitTimeout(time.Second)
	}
	s.client.Disconnect(250)
}

// LoadTLSConfig builds the client TLS settings, trusting caFile in addition
// to the system roots when it is given.
func LoadTLSConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
