package sigmadaq

import "fmt"

// Band classifies a sample rate by the acquisition mode it requires.
// The band decides which firmware image runs, how many channels are
// available, and which trigger mechanism the hardware offers.
type Band int

// Names for the possible values of Band
const (
	BandStandard Band = iota // 50 MHz reference divided by an integer, 16 channels, LUT trigger
	BandHigh                 // 100 or 200 MHz, fewer channels, single-pin trigger
)

func (b Band) String() string {
	switch b {
	case BandStandard:
		return "standard"
	case BandHigh:
		return "high"
	}
	return fmt.Sprintf("Band(%d)", int(b))
}

// The 50 MHz reference clock and the two direct high-speed rates.
const (
	rateReference uint64 = 50_000_000
	rate100MHz    uint64 = 100_000_000
	rate200MHz    uint64 = 200_000_000

	// The divider register holds (divider - 1) in one byte, so dividers
	// run 1..256. 50e6 = 2^7 * 5^8, so 250 is the largest divider that
	// divides the reference exactly.
	maxDivider = 256
)

// sampleRates is the canonical set offered on the configuration surface.
// Any exact integer divisor of 50 MHz with divider <= 256 also works; this
// list is what we advertise.
var sampleRates = []uint64{
	200_000, 250_000, 500_000,
	1_000_000, 5_000_000, 10_000_000, 25_000_000, 50_000_000,
	100_000_000, 200_000_000,
}

// SampleRates returns the advertised discrete sample rates, slowest first.
func SampleRates() []uint64 {
	rates := make([]uint64, len(sampleRates))
	copy(rates, sampleRates)
	return rates
}

// RateBand reports which speed band a (normalized) sample rate belongs to.
func RateBand(rate uint64) Band {
	if rate > rateReference {
		return BandHigh
	}
	return BandStandard
}

// NormalizeRate maps a requested sample rate onto the nearest rate the
// hardware can actually produce. Above 50 MHz only the two direct rates
// exist. At or below 50 MHz the result is the fastest exact integer divisor
// of the 50 MHz reference that does not exceed the request, so the clock
// synthesizer is guaranteed a whole divider. Requests the divider range
// cannot reach return ErrUnsupportedRate.
//
// NormalizeRate is idempotent: a rate it returns normalizes to itself.
func NormalizeRate(want uint64) (uint64, error) {
	switch {
	case want > rate100MHz:
		return rate200MHz, nil
	case want > rateReference:
		return rate100MHz, nil
	case want == 0:
		return 0, fmt.Errorf("requested rate 0 Hz: %w", ErrUnsupportedRate)
	}

	// Smallest divider that does not overshoot the request, then walk up
	// until it divides the reference exactly.
	div := rateReference / want
	if rateReference%want != 0 || div == 0 {
		div++
	}
	for ; div <= maxDivider; div++ {
		if rateReference%div == 0 {
			return rateReference / div, nil
		}
	}
	return 0, fmt.Errorf("requested rate %d Hz is below %d Hz: %w",
		want, sampleRates[0], ErrUnsupportedRate)
}
