package sigmadaq

import "fmt"

// Write-register address space of the capture FPGA. Both hardware
// generations share this layout.
const (
	regClockSelect    uint8 = 0x00
	regTriggerSelect0 uint8 = 0x01 // trigger LUT program chain
	regTriggerSelect2 uint8 = 0x02
	regMode           uint8 = 0x03
	regMemRow         uint8 = 0x04
	regPostTrigger    uint8 = 0x05
	regTriggerOption  uint8 = 0x06
	regPinView        uint8 = 0x07
	regTest           uint8 = 0x0f
)

// Mode register bits.
const (
	modeSDRAMWriteEnable uint8 = 0x04
	modeTriggerReset     uint8 = 0x10
	modeTriggerEnable    uint8 = 0x20
)

// Trigger-select2 register bits. The LED-select bits pick which front-panel
// LED group lights when the trigger fires.
const (
	selectPinMask     uint8 = 0x07 // bits 0-2: trigger pin index
	selectFallingEdge uint8 = 0x08 // bit 3: trigger on falling instead of rising edge
	selectLED0        uint8 = 1 << 6
	selectLED1        uint8 = 1 << 7

	// Written to trigger-select2 to put the FPGA into LUT programming
	// mode before the table program is sent.
	selectLUTProgram uint8 = 0x20

	// Normal-mode value once a LUT program has been loaded.
	selectLUTNormal uint8 = selectLED1 | selectLED0
)

// Trigger-option register bits.
const (
	optionAssertOnTrigger uint8 = 0x01 // drive trigger-out when the trigger fires
	optionTriggerOutEn    uint8 = 0x02 // enable the trigger-out pin at all
)

// EncodeClockSelect renders the clock-select register payload:
// {async, fraction, disabled-mask low byte, disabled-mask high byte}.
func EncodeClockSelect(cs ClockSelect) []byte {
	return []byte{
		cs.Async,
		cs.Fraction,
		byte(cs.DisabledChannels & 0xff),
		byte(cs.DisabledChannels >> 8),
	}
}

// DecodeClockSelect is the inverse of EncodeClockSelect. It exists for
// diagnostics; arming never reads this register back.
func DecodeClockSelect(p []byte) (ClockSelect, error) {
	if len(p) != 4 {
		return ClockSelect{}, fmt.Errorf("clock-select payload is %d bytes, want 4", len(p))
	}
	return ClockSelect{
		Async:            p[0],
		Fraction:         p[1],
		DisabledChannels: uint16(p[2]) | uint16(p[3])<<8,
	}, nil
}

// TriggerOption holds the trigger in/out pin configuration.
type TriggerOption struct {
	AssertOnTrigger  bool // drive trigger-out when the trigger fires
	TriggerOutEnable bool
}

// EncodeTriggerOption renders the 1-byte trigger-option payload.
func EncodeTriggerOption(opt TriggerOption) []byte {
	var b uint8
	if opt.AssertOnTrigger {
		b |= optionAssertOnTrigger
	}
	if opt.TriggerOutEnable {
		b |= optionTriggerOutEn
	}
	return []byte{b}
}

// DecodeTriggerOption is the inverse of EncodeTriggerOption.
func DecodeTriggerOption(p []byte) (TriggerOption, error) {
	if len(p) != 1 {
		return TriggerOption{}, fmt.Errorf("trigger-option payload is %d bytes, want 1", len(p))
	}
	return TriggerOption{
		AssertOnTrigger:  p[0]&optionAssertOnTrigger != 0,
		TriggerOutEnable: p[0]&optionTriggerOutEn != 0,
	}, nil
}

// ModeFlags holds the capture-control flags of the mode register.
type ModeFlags struct {
	TriggerReset     bool
	SDRAMWriteEnable bool
	TriggerEnable    bool
}

// EncodeMode renders the 1-byte mode register payload.
func EncodeMode(m ModeFlags) []byte {
	var b uint8
	if m.TriggerReset {
		b |= modeTriggerReset
	}
	if m.SDRAMWriteEnable {
		b |= modeSDRAMWriteEnable
	}
	if m.TriggerEnable {
		b |= modeTriggerEnable
	}
	return []byte{b}
}

// DecodeMode is the inverse of EncodeMode.
func DecodeMode(p []byte) (ModeFlags, error) {
	if len(p) != 1 {
		return ModeFlags{}, fmt.Errorf("mode payload is %d bytes, want 1", len(p))
	}
	return ModeFlags{
		TriggerReset:     p[0]&modeTriggerReset != 0,
		SDRAMWriteEnable: p[0]&modeSDRAMWriteEnable != 0,
		TriggerEnable:    p[0]&modeTriggerEnable != 0,
	}, nil
}

// PostTriggerValue converts a capture ratio in percent (the share of the
// buffer kept after the trigger) to the 1-byte register value. The register
// contract truncates: 50% maps to 127, not 128.
func PostTriggerValue(ratio int) uint8 {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 100 {
		ratio = 100
	}
	return uint8(ratio * 255 / 100)
}
