// Package reliability holds the retry policy shared by the upstream
// voice providers.
package reliability

import "time"

// IsRetryableHTTPStatus reports whether an upstream HTTP status is
// worth one more attempt. Rate limiting and server-side failures
// qualify; anything the caller did wrong does not.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// ExponentialBackoff returns the delay before the given retry attempt,
// doubling from base and never exceeding max. Attempt 0 is the first
// retry. The schedule is deterministic so tests can assert on it.
func ExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		if d >= max {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
