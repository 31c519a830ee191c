package sigmadaq

import "time"

// CaptureLimits bounds a capture by sample count, elapsed time, or both.
// A zero value means unlimited. The limits are polled by the sample
// receiver after each delivery; there is no timer of its own.
type CaptureLimits struct {
	MaxSamples  uint64
	MaxDuration time.Duration

	started   time.Time
	delivered uint64
}

// Start resets the running totals at arm time.
func (lim *CaptureLimits) Start(now time.Time) {
	lim.started = now
	lim.delivered = 0
}

// Update adds n delivered samples (per channel word, not per byte).
func (lim *CaptureLimits) Update(n int) {
	lim.delivered += uint64(n)
}

// Delivered returns the samples counted so far in this capture.
func (lim *CaptureLimits) Delivered() uint64 {
	return lim.delivered
}

// Reached reports whether either budget is exhausted.
func (lim *CaptureLimits) Reached(now time.Time) bool {
	if lim.MaxSamples > 0 && lim.delivered >= lim.MaxSamples {
		return true
	}
	if lim.MaxDuration > 0 && now.Sub(lim.started) >= lim.MaxDuration {
		return true
	}
	return false
}

// Timeout derives an overall acquisition timeout from the configured
// limits and the sample rate: the time limit if set, otherwise the time
// the sample budget takes at this rate (with slack for the trigger to
// fire), otherwise zero for no timeout.
func (lim *CaptureLimits) Timeout(rate uint64) time.Duration {
	if lim.MaxDuration > 0 {
		return lim.MaxDuration
	}
	if lim.MaxSamples > 0 && rate > 0 {
		d := time.Duration(lim.MaxSamples * uint64(time.Second) / rate)
		return d + d/4 + 100*time.Millisecond
	}
	return 0
}
