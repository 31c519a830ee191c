package sigmadaq

import "fmt"

// The FPGA runs a different bitstream per speed band: one image samples the
// 16 pins from the divided 50 MHz reference, the others run the pins at 100
// or 200 MHz. Selecting the image is part of arming; moving the bytes to
// the device is not, and hides behind FirmwareLoader.
const (
	firmware50MHz  = "sigma-50sync.fw"
	firmware100MHz = "sigma-100.fw"
	firmware200MHz = "sigma-200.fw"
)

// FirmwareLoader uploads a named firmware image to the device. The
// surrounding driver owns image storage and the upload protocol.
type FirmwareLoader interface {
	UploadFirmware(name string) error
}

// FirmwareForRate selects the image a normalized sample rate requires.
func FirmwareForRate(rate uint64) (string, error) {
	switch {
	case rate == rate200MHz:
		return firmware200MHz, nil
	case rate == rate100MHz:
		return firmware100MHz, nil
	case rate != 0 && rate <= rateReference && rateReference%rate == 0:
		return firmware50MHz, nil
	}
	return "", fmt.Errorf("no firmware image for rate %d Hz: %w", rate, ErrRateMismatch)
}
