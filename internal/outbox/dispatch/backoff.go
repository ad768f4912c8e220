package dispatch

import "time"

const (
	baseBackoff = 60 * time.Second
	maxBackoff  = 3600 * time.Second
)

// Backoff returns the delay before the next attempt is eligible, doubling
// from one minute per completed attempt and capped at one hour.
func Backoff(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	d := baseBackoff
	for i := 1; i < attemptNumber; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
