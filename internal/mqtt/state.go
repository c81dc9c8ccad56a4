package mqtt

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ConnectionState describes the broker session as seen by the Manager.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Status is a snapshot of the manager. Attempt and NextDelay are only set
// while Reconnecting; Err holds the failure that caused the last transition.
type Status struct {
	State     ConnectionState
	Attempt   int
	NextDelay time.Duration
	Err       error
}

func (s Status) String() string {
	if s.State == Reconnecting {
		return fmt.Sprintf("%s(attempt=%d, delay=%s)", s.State, s.Attempt, s.NextDelay)
	}
	return s.State.String()
}

// ErrConnectionLost is reported when an established session drops.
var ErrConnectionLost = errors.New("mqtt: connection lost")

// AuthError is a CONNACK rejection of the configured credentials. It is not
// retried.
type AuthError struct {
	Broker string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mqtt: broker %s rejected credentials: %v", e.Broker, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Backoff is a capped exponential retry schedule.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = Backoff{Initial: time.Second, Max: 60 * time.Second}

// Delay returns the wait before reconnect attempt n (1-based):
// Initial, 2*Initial, 4*Initial, ... never more than Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	d := b.Initial
	for i := 1; i < attempt; i++ {
		if (b.Max > 0 && d >= b.Max) || d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
