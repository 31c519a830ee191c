package sigmadaq

import (
	"errors"
	"testing"
)

// TestSynthesizeClock checks the clock-select fields for rates in both
// bands against hand-computed values.
func TestSynthesizeClock(t *testing.T) {
	var tests = []struct {
		rate     uint64
		fraction uint8
		disabled uint16
		nchan    int
	}{
		{200_000_000, 0, 0xf0ff, 4},
		{100_000_000, 0, 0x00ff, 8},
		{50_000_000, 0, 0x0000, 16},
		{25_000_000, 1, 0x0000, 16},
		{1_000_000, 49, 0x0000, 16},
		{200_000, 249, 0x0000, 16},
	}
	for _, test := range tests {
		cs, err := SynthesizeClock(test.rate)
		if err != nil {
			t.Errorf("SynthesizeClock(%d) failed: %v", test.rate, err)
			continue
		}
		if cs.Async != 0 {
			t.Errorf("SynthesizeClock(%d).Async=%d, want 0", test.rate, cs.Async)
		}
		if cs.Fraction != test.fraction {
			t.Errorf("SynthesizeClock(%d).Fraction=%d, want %d", test.rate, cs.Fraction, test.fraction)
		}
		if cs.DisabledChannels != test.disabled {
			t.Errorf("SynthesizeClock(%d).DisabledChannels=%#04x, want %#04x",
				test.rate, cs.DisabledChannels, test.disabled)
		}
		if n := cs.EnabledChannels(); n != test.nchan {
			t.Errorf("SynthesizeClock(%d): %d channels enabled, want %d", test.rate, n, test.nchan)
		}
	}
}

// TestSynthesizeClockRejects checks that rates the normalizer could not
// have produced are refused rather than rounded.
func TestSynthesizeClockRejects(t *testing.T) {
	for _, rate := range []uint64{0, 333_333, 49_999_999, 150_000_000, 3} {
		if _, err := SynthesizeClock(rate); !errors.Is(err, ErrRateMismatch) {
			t.Errorf("SynthesizeClock(%d) err=%v, want ErrRateMismatch", rate, err)
		}
	}
}
