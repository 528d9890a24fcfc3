package queue

import "time"

// Backoff returns the delay before the given attempt number runs again:
// base doubling per attempt, capped. Monotonically non-decreasing in the
// attempt number, which keeps next_run_at non-decreasing across retries.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
