package humanize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	pauses []time.Duration
	keys   strings.Builder
	failAt int
	sent   int
}

func (r *recorder) Pause(ctx context.Context, d time.Duration) error {
	r.pauses = append(r.pauses, d)
	return ctx.Err()
}

func (r *recorder) SendKeys(_ context.Context, keys string) error {
	r.sent++
	if r.failAt > 0 && r.sent == r.failAt {
		return errors.New("node detached")
	}
	r.keys.WriteString(keys)
	return nil
}

func TestDelay_WithinRange(t *testing.T) {
	typist := NewWithSeed(7)
	r := Range{Min: 50 * time.Millisecond, Max: 150 * time.Millisecond}

	for i := 0; i < 500; i++ {
		d := typist.Delay(r)
		assert.GreaterOrEqual(t, d, r.Min)
		assert.LessOrEqual(t, d, r.Max)
	}
}

func TestDelay_DegenerateRange(t *testing.T) {
	typist := NewWithSeed(1)
	assert.Equal(t, time.Second, typist.Delay(Range{Min: time.Second, Max: time.Second}))
	assert.Equal(t, time.Second, typist.Delay(Range{Min: time.Second, Max: time.Millisecond}))
	assert.Equal(t, time.Duration(0), typist.Delay(Range{}))
}

func TestDelay_Randomized(t *testing.T) {
	typist := NewWithSeed(42)
	r := Range{Min: 0, Max: time.Second}
	seen := map[time.Duration]bool{}
	for i := 0; i < 20; i++ {
		seen[typist.Delay(r)] = true
	}
	assert.Greater(t, len(seen), 1, "delays should vary between draws")
}

func TestType_PausesBeforeEveryRune(t *testing.T) {
	typist := NewWithSeed(3)
	rec := &recorder{}
	r := Range{Min: 30 * time.Millisecond, Max: 80 * time.Millisecond}

	err := typist.Type(context.Background(), rec, rec, "héllo", r)
	require.NoError(t, err)

	assert.Equal(t, "héllo", rec.keys.String())
	require.Len(t, rec.pauses, 5)
	for _, p := range rec.pauses {
		assert.GreaterOrEqual(t, p, r.Min)
		assert.LessOrEqual(t, p, r.Max)
	}
}

func TestType_StopsOnSendError(t *testing.T) {
	typist := NewWithSeed(3)
	rec := &recorder{failAt: 3}

	err := typist.Type(context.Background(), rec, rec, "abcdef", Range{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node detached")
	assert.Equal(t, "ab", rec.keys.String())
}

func TestType_CancelledContext(t *testing.T) {
	typist := NewWithSeed(3)
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := typist.Type(ctx, rec, rec, "abc", Range{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.keys.String())
}

func TestHesitate(t *testing.T) {
	typist := NewWithSeed(9)
	rec := &recorder{}
	r := Range{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond}

	require.NoError(t, typist.Hesitate(context.Background(), rec, r))
	require.Len(t, rec.pauses, 1)
	assert.GreaterOrEqual(t, rec.pauses[0], r.Min)
	assert.LessOrEqual(t, rec.pauses[0], r.Max)
}
