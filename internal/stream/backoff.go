package stream

import "time"

// NextDelay computes the reconnect delay for a 1-based attempt number:
// base * 2^(attempt-1), capped at max. With base 2s and cap 30s the schedule
// is 2s, 4s, 8s, 16s, 30s, 30s, ... The schedule is deterministic: the herd
// here is a handful of campus clients, not a fleet, so jitter buys nothing.
func NextDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 2 * time.Second
	}
	if max <= 0 {
		max = 30 * time.Second
	}
	if attempt > 32 {
		return max
	}

	delay := base << (attempt - 1)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}
