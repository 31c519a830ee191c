package sigmadaq

import "fmt"

// ClockSelect holds the fields of the clock-select register, derived from a
// normalized sample rate and never edited by hand. The disabled-channels
// mask is how the hardware trades channel count for speed: the two
// high-speed rates leave only 4 or 8 of the 16 pins active.
type ClockSelect struct {
	Async            uint8
	Fraction         uint8 // clock divider minus one; zero in the high band
	DisabledChannels uint16
}

// Channel-disable masks for the high band.
const (
	disableMask200MHz uint16 = 0xf0ff // 4 channels remain
	disableMask100MHz uint16 = 0x00ff // 8 channels remain
)

// SynthesizeClock computes the clock-select register for a normalized
// sample rate. Handing it a rate that NormalizeRate could not have returned
// is a bug in the caller and yields ErrRateMismatch.
func SynthesizeClock(rate uint64) (ClockSelect, error) {
	switch rate {
	case rate200MHz:
		return ClockSelect{DisabledChannels: disableMask200MHz}, nil
	case rate100MHz:
		return ClockSelect{DisabledChannels: disableMask100MHz}, nil
	}

	if rate == 0 || rateReference%rate != 0 {
		return ClockSelect{}, fmt.Errorf("rate %d Hz does not divide the %d Hz reference: %w",
			rate, rateReference, ErrRateMismatch)
	}
	div := rateReference / rate
	if div > maxDivider {
		return ClockSelect{}, fmt.Errorf("rate %d Hz needs divider %d > %d: %w",
			rate, div, maxDivider, ErrRateMismatch)
	}
	return ClockSelect{Fraction: uint8(div - 1)}, nil
}

// EnabledChannels returns how many logic channels the mask leaves active.
func (cs ClockSelect) EnabledChannels() int {
	n := 0
	for mask := cs.DisabledChannels ^ 0xffff; mask != 0; mask >>= 1 {
		n += int(mask & 1)
	}
	return n
}
