package sigmadaq

import "errors"

// Errors that callers are expected to distinguish. Everything else that can
// go wrong (chiefly transport failures) is wrapped and propagated as-is.
var (
	// ErrUnsupportedRate means a requested sample rate is below the lowest
	// rate the 50 MHz clock divider can produce.
	ErrUnsupportedRate = errors.New("sample rate not supported")

	// ErrTriggerUnsupported means the configured trigger conditions cannot
	// be realized at the selected speed band.
	ErrTriggerUnsupported = errors.New("trigger not supported at this sample rate")

	// ErrRateMismatch means the clock synthesizer was handed a rate the
	// normalizer should never have produced. It indicates a bug in this
	// package, not a user error.
	ErrRateMismatch = errors.New("internal rate table/synthesizer mismatch")

	// ErrUnsupportedDevice means the device generation is recognized but
	// cannot be armed (the OMEGA family, at present).
	ErrUnsupportedDevice = errors.New("device generation not supported")
)
