// Package clock provides the Clock abstraction and an exponential Backoff
// calculator. The worker pool's adaptive poller keeps its own inline
// backoff and does not use Backoff.
package clock

import "time"

// Clock returns the current time. Production code uses Real; tests supply a
// fake so lifecycle and due-date arithmetic can be asserted deterministically.
type Clock interface {
	Now() time.Time
}

// Real is the production Clock, always reporting UTC.
type Real struct{}

// Now returns the current time in UTC.
func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock that always returns the same instant, for tests.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return time.Time(f) }

// Backoff computes a monotonically scaled delay, clamped at a ceiling, that
// resets back to its initial value on demand. It holds no notion of
// "success" or "failure" itself: callers call Next with whatever factor
// fits the outcome they just saw (grow on empty/error, shrink on success)
// and Reset when they want to start over.
type Backoff struct {
	initial time.Duration
	ceiling time.Duration
	current time.Duration
}

// New returns a Backoff starting at initial, never exceeding ceiling.
func New(initial, ceiling time.Duration) *Backoff {
	return &Backoff{
		initial: initial,
		ceiling: ceiling,
		current: initial,
	}
}

// Next scales the current delay by factor, clamps it to [initial, ceiling],
// stores the result, and returns it. A factor greater than 1 grows the
// delay (back off further); a factor in (0, 1) shrinks it back down.
func (b *Backoff) Next(factor float64) time.Duration {
	scaled := time.Duration(float64(b.current) * factor)
	if scaled < b.initial {
		scaled = b.initial
	}
	if scaled > b.ceiling {
		scaled = b.ceiling
	}
	b.current = scaled
	return b.current
}

// Reset returns the backoff to its initial delay.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay that would be used right now, without advancing it.
func (b *Backoff) Current() time.Duration {
	return b.current
}
