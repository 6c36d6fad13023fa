package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Until returns the duration from Now to t, zero when t has passed.
func Until(t time.Time) time.Duration {
	if d := t.Sub(Now()); d > 0 {
		return d
	}
	return 0
}

// Due reports whether deadline is at or before Now.
func Due(deadline time.Time) bool { return !Now().Before(deadline) }
