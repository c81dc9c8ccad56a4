// Package mqtt owns the broker session: connect, subscribe, deliver, detect
// loss and reconnect with capped exponential backoff. The transport itself is
// behind Dialer so the state machine can be driven without a broker.
package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/netnutmike/meshtastic-mqtt-monitor/internal/model"
)

// Dialer opens one broker session per call. A rejected login must be
// returned as *AuthError; any other error is retried.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// Session is one live connection. Lost yields at most one value, the reason
// the session dropped. Close unsubscribes and releases the connection.
type Session interface {
	Subscribe(filters []string, qos byte, deliver func(topic string, payload []byte)) error
	Lost() <-chan error
	Close()
}

// Handler consumes messages in delivery order on the transport's delivery
// goroutine.
type Handler func(msg model.RawMessage)

type Options struct {
	Dialer        Dialer
	Filters       []string
	QoS           byte
	Backoff       Backoff
	Handler       Handler
	OnStateChange func(Status)
	Logger        zerolog.Logger
}

type event int

const (
	evConnect event = iota
	evConnected
	evFailed
	evLost
	evAuthRejected
	evStop
)

type Manager struct {
	opts Options
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	status Status

	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewManager(opts Options) *Manager {
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff
	}
	if opts.Handler == nil {
		opts.Handler = func(model.RawMessage) {}
	}
	return &Manager{
		opts:   opts,
		now:    time.Now,
		wait:   sleep,
		stopCh: make(chan struct{}),
	}
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Stop moves the manager to its terminal Disconnected state. Run returns
// shortly after and no reconnect is attempted afterwards. Safe to call more
// than once and from any goroutine.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.transition(evStop, nil)
		close(m.stopCh)
	})
}

// Run drives the connection until Stop, ctx cancellation or an
// authentication failure. Only the latter is returned as an error.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer m.Stop()

	if st := m.transition(evConnect, nil); st.State != Connecting {
		return nil
	}
	log := m.opts.Logger

	for ctx.Err() == nil && !m.stopped.Load() {
		sess, err := m.connect(ctx)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				m.transition(evAuthRejected, err)
				log.Error().Err(err).Msg("mqtt authentication rejected, not retrying")
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			st := m.transition(evFailed, err)
			log.Warn().Err(err).Int("attempt", st.Attempt).Dur("retry_in", st.NextDelay).Msg("mqtt connect failed")
			if m.wait(ctx, st.NextDelay) != nil {
				return nil
			}
			continue
		}

		m.transition(evConnected, nil)
		log.Info().Strs("filters", m.opts.Filters).Msg("mqtt connected and subscribed")

		select {
		case <-ctx.Done():
			sess.Close()
			return nil
		case lostErr := <-sess.Lost():
			sess.Close()
			if ctx.Err() != nil {
				return nil
			}
			if lostErr == nil {
				lostErr = ErrConnectionLost
			}
			st := m.transition(evLost, lostErr)
			log.Warn().Err(lostErr).Dur("retry_in", st.NextDelay).Msg("mqtt connection lost")
			if m.wait(ctx, st.NextDelay) != nil {
				return nil
			}
		}
	}
	return nil
}

func (m *Manager) connect(ctx context.Context) (Session, error) {
	sess, err := m.opts.Dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.Subscribe(m.opts.Filters, m.opts.QoS, m.deliver); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (m *Manager) deliver(topic string, payload []byte) {
	if m.stopped.Load() {
		return
	}
	m.opts.Handler(model.RawMessage{Topic: topic, Payload: payload, ReceivedAt: m.now()})
}

// transition is the only place the status changes. Events that do not apply
// to the current state leave it untouched; nothing leaves the terminal state.
func (m *Manager) transition(ev event, err error) Status {
	m.mu.Lock()
	cur := m.status
	next := cur
	switch {
	case m.stopped.Load():
	case ev == evStop:
		m.stopped.Store(true)
		next = Status{State: Disconnected}
	case ev == evAuthRejected:
		m.stopped.Store(true)
		next = Status{State: Disconnected, Err: err}
	case ev == evConnect && cur.State == Disconnected:
		next = Status{State: Connecting}
	case ev == evConnected && (cur.State == Connecting || cur.State == Reconnecting):
		next = Status{State: Connected}
	case ev == evFailed && (cur.State == Connecting || cur.State == Reconnecting):
		attempt := cur.Attempt + 1
		next = Status{State: Reconnecting, Attempt: attempt, NextDelay: m.opts.Backoff.Delay(attempt), Err: err}
	case ev == evLost && cur.State == Connected:
		next = Status{State: Reconnecting, Attempt: 1, NextDelay: m.opts.Backoff.Delay(1), Err: err}
	}
	m.status = next
	m.mu.Unlock()

	changed := next.State != cur.State || next.Attempt != cur.Attempt || next.NextDelay != cur.NextDelay
	if changed && m.opts.OnStateChange != nil {
		m.opts.OnStateChange(next)
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscriptionFilters expands a wildcard filter into one filter per channel
// when a channel restriction is configured: msh/US/2/e/# with [LongFast]
// becomes msh/US/2/e/LongFast/#. Filters that do not end in /# are used
// as given.
func SubscriptionFilters(topic string, channels []string) []string {
	if len(channels) == 0 || !strings.HasSuffix(topic, "/#") {
		return []string{topic}
	}
	base := strings.TrimSuffix(topic, "#")
	filters := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			filters = append(filters, base+ch+"/#")
		}
	}
	if len(filters) == 0 {
		return []string{topic}
	}
	return filters
}
