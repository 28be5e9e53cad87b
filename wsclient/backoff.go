package wsclient

import "time"

// nextBackoff returns the delay before reconnect attempt n (1-based):
// initial, doubling per attempt, capped at max.
func nextBackoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
