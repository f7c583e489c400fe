// Package humanize paces input the way a person at a keyboard would: a pause
// before and after each field, and a randomized gap between keystrokes. The
// target front end scores input timing when deciding whether a client is
// automated.
package humanize

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Range is a closed interval of delays.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Pauser suspends the caller for a duration, honouring ctx.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

// KeySender delivers keystrokes, either to a specific element or to whatever
// currently holds focus.
type KeySender interface {
	SendKeys(ctx context.Context, keys string) error
}

// Typist draws delays from its own random source. It is safe for concurrent
// use, though a run only ever drives one page.
type Typist struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Typist seeded from the clock.
func New() *Typist {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed creates a Typist with a deterministic source, for tests.
func NewWithSeed(seed int64) *Typist {
	return &Typist{rng: rand.New(rand.NewSource(seed))}
}

// Delay picks a duration uniformly within r. An inverted or empty range
// yields r.Min.
func (t *Typist) Delay(r Range) time.Duration {
	span := r.Max - r.Min
	if span <= 0 {
		return r.Min
	}
	t.mu.Lock()
	n := t.rng.Int63n(int64(span) + 1)
	t.mu.Unlock()
	return r.Min + time.Duration(n)
}

// Hesitate pauses for a random duration within r.
func (t *Typist) Hesitate(ctx context.Context, p Pauser, r Range) error {
	return p.Pause(ctx, t.Delay(r))
}

// Type sends text one character at a time with a random gap before each key.
func (t *Typist) Type(ctx context.Context, p Pauser, dst KeySender, text string, perKey Range) error {
	for i, r := range []rune(text) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.Pause(ctx, t.Delay(perKey)); err != nil {
			return err
		}
		if err := dst.SendKeys(ctx, string(r)); err != nil {
			return fmt.Errorf("humanize: failed to send key %d: %w", i, err)
		}
	}
	return nil
}
