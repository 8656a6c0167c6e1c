package wsclient

import (
	"math"
	"math/rand"
	"time"
)

// Default backoff configuration values.
const (
	DefaultBackoffBase        = time.Second
	DefaultBackoffMultiplier  = 2.0
	DefaultBackoffMax         = 10 * time.Second
	DefaultBackoffMaxAttempts = 5
)

// Backoff is the reconnect policy. Delay for attempt n (0-based) is
// min(Base * Multiplier^n, Max), optionally spread by ±Jitter.
type Backoff struct {
	Base        time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxAttempts int
	Jitter      float64 // 0~1, 0 disables
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:        DefaultBackoffBase,
		Multiplier:  DefaultBackoffMultiplier,
		Max:         DefaultBackoffMax,
		MaxAttempts: DefaultBackoffMaxAttempts,
	}
}

func (b Backoff) norm() Backoff {
	d := DefaultBackoff()
	if b.Base <= 0 {
		b.Base = d.Base
	}
	if b.Multiplier < 1 {
		b.Multiplier = d.Multiplier
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		b.Jitter = 0
	}
	return b
}

// Delay returns the wait before retry number attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	f := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if f > float64(b.Max) || math.IsInf(f, 0) {
		f = float64(b.Max)
	}
	if b.Jitter > 0 {
		f += f * b.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(f)
}

// Exhausted reports whether attempts has reached the limit.
func (b Backoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
