package backoff

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name    string
		base    time.Duration
		attempt int
		want    time.Duration
	}{
		{"zero attempt", time.Second, 0, time.Second},
		{"third attempt", time.Second, 3, 8 * time.Second},
		{"negative attempt", time.Second, -4, time.Second},
		{"zero base", 0, 5, 0},
		{"overflow", time.Hour, 62, time.Duration(math.MaxInt64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Exponential(tt.base, tt.attempt))
		})
	}
}

func TestCapped_MatchesFormula(t *testing.T) {
	base := 2 * time.Second
	limit := 30 * time.Second

	for n := 1; n <= 10; n++ {
		want := time.Duration(math.Min(
			float64(base)*math.Pow(2, float64(n-1)),
			float64(limit),
		))
		assert.Equal(t, want, Capped(base, n, limit), "attempt %d", n)
	}
}

func TestCapped_Monotonic(t *testing.T) {
	prev := time.Duration(0)
	for n := 1; n <= 64; n++ {
		d := Capped(time.Second, n, time.Minute)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, time.Minute)
		prev = d
	}
}

func TestCapped_NoLimit(t *testing.T) {
	assert.Equal(t, 16*time.Second, Capped(time.Second, 5, 0))
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.False(t, Sleep(ctx, time.Minute))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleep_Elapses(t *testing.T) {
	assert.True(t, Sleep(context.Background(), time.Millisecond))
}
