package control

import (
	"errors"
	"time"
)

// ConnectionState is the broker connection state.
type ConnectionState int32

// Connection states.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// DefaultRetryInterval is the pause between connection attempts.
const DefaultRetryInterval = 5 * time.Second

// ErrRetriesExhausted is returned when a RetryPolicy with MaxAttempts gives up.
var ErrRetriesExhausted = errors.New("broker connection retries exhausted")

// RetryPolicy decides how long to wait between connection attempts.
type RetryPolicy struct {
	// Interval is the fixed pause used when Backoff is nil.
	Interval time.Duration
	// MaxAttempts bounds consecutive failed attempts; 0 retries forever.
	MaxAttempts int
	// Backoff overrides Interval. attempt counts failures so far, from 1.
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy retries forever every five seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: DefaultRetryInterval}
}

// Delay returns the wait after the given number of failed attempts.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(attempt)
	}
	if p.Interval <= 0 {
		return DefaultRetryInterval
	}
	return p.Interval
}

// Exhausted reports whether no attempt should follow the given failures.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
