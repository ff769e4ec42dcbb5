package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitterBoundedAndBidirectional(t *testing.T) {
	interval := 10 * time.Minute
	bound := time.Duration(jitterFraction * float64(interval))

	var sawPositive, sawNegative bool
	for i := 0; i < 1000; i++ {
		j := Jitter(interval)
		assert.GreaterOrEqual(t, j, -bound)
		assert.LessOrEqual(t, j, bound)
		if j > 0 {
			sawPositive = true
		}
		if j < 0 {
			sawNegative = true
		}
	}
	assert.True(t, sawPositive, "jitter never positive across 1000 samples")
	assert.True(t, sawNegative, "jitter never negative across 1000 samples")
}

func TestJitterZeroForNonPositiveInterval(t *testing.T) {
	assert.Zero(t, Jitter(0))
	assert.Zero(t, Jitter(-time.Minute))
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{60 * time.Second, 10 * time.Second},
		{3600 * time.Second, 30 * time.Second},
		{400 * time.Second, 20 * time.Second},
		{200 * time.Second, 10 * time.Second},
		{600 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PollInterval(tt.interval), "pollInterval(%s)", tt.interval)
	}
}
