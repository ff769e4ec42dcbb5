package refresh

import (
	"math/rand"
	"time"
)

// Poll tick bounds. The daemon's own tick rate scales with the configured
// refresh interval but stays responsive for short intervals and cheap for
// long ones.
const (
	MinPollInterval = 10 * time.Second
	MaxPollInterval = 30 * time.Second
)

// jitterFraction bounds the magnitude of refresh jitter to 10% of the
// configured interval.
const jitterFraction = 0.10

// Jitter returns a uniform random offset in
// [-jitterFraction*interval, +jitterFraction*interval]. Spreading next_run
// this way keeps many repositories sharing one interval from refreshing in
// lockstep.
func Jitter(interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	max := jitterFraction * float64(interval)
	return time.Duration((rand.Float64()*2 - 1) * max)
}

// PollInterval derives the daemon tick rate from the refresh interval:
// interval/20, clamped to [MinPollInterval, MaxPollInterval].
func PollInterval(interval time.Duration) time.Duration {
	tick := interval / 20
	if tick < MinPollInterval {
		return MinPollInterval
	}
	if tick > MaxPollInterval {
		return MaxPollInterval
	}
	return tick
}
