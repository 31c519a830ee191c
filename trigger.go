package sigmadaq

import "fmt"

// TriggerMatch is the per-channel trigger condition vocabulary.
type TriggerMatch int

// Names for the possible values of TriggerMatch
const (
	MatchNone    TriggerMatch = iota // channel does not participate in the trigger
	MatchLow                         // level zero
	MatchHigh                        // level one
	MatchRising                      // 0 -> 1 transition
	MatchFalling                     // 1 -> 0 transition
)

var matchNames = map[TriggerMatch]string{
	MatchNone:    "none",
	MatchLow:     "level-zero",
	MatchHigh:    "level-one",
	MatchRising:  "rising",
	MatchFalling: "falling",
}

func (m TriggerMatch) String() string {
	if name, ok := matchNames[m]; ok {
		return name
	}
	return fmt.Sprintf("TriggerMatch(%d)", int(m))
}

// isEdge reports whether the condition compares consecutive sample words.
func (m TriggerMatch) isEdge() bool {
	return m == MatchRising || m == MatchFalling
}

// MaxChannels is the channel count of the standard band; the trigger
// hardware always evaluates 16 inputs even when the clock-select mask
// disables some of them.
const MaxChannels = 16

// TriggerSpec assigns one match condition to each of the 16 channels.
type TriggerSpec [MaxChannels]TriggerMatch

// Enabled reports whether any channel carries a condition.
func (spec TriggerSpec) Enabled() bool {
	for _, m := range spec {
		if m != MatchNone {
			return true
		}
	}
	return false
}

// SinglePin is the high-band trigger program: the hardware watches one pin
// for one edge.
type SinglePin struct {
	Pin         int // 0..7
	FallingEdge bool
}

// Selector returns the trigger-select2 register value for the program,
// including the LED-indicator bit for the active pin group.
func (p SinglePin) Selector() uint8 {
	sel := selectLED1 | uint8(p.Pin)&selectPinMask
	if p.FallingEdge {
		sel |= selectFallingEdge
	}
	return sel
}

// LUT is the standard-band trigger program: a combinational table the
// hardware evaluates over the previous and current sample words. Each
// channel owns a 4-entry mini table indexed by (previous bit << 1 | current
// bit); the trigger fires when every channel's entry is true at once.
type LUT struct {
	tables [MaxChannels]uint8 // low 4 bits used per channel
}

// Per-channel mini tables, indexed by prev<<1|cur.
const (
	lutAlways  uint8 = 0xf
	lutLow     uint8 = 0x5 // cur == 0: entries 0b00 and 0b10
	lutHigh    uint8 = 0xa // cur == 1: entries 0b01 and 0b11
	lutRising  uint8 = 0x2 // prev == 0, cur == 1
	lutFalling uint8 = 0x4 // prev == 1, cur == 0
)

func lutTable(m TriggerMatch) uint8 {
	switch m {
	case MatchLow:
		return lutLow
	case MatchHigh:
		return lutHigh
	case MatchRising:
		return lutRising
	case MatchFalling:
		return lutFalling
	}
	return lutAlways
}

// Evaluate is the reference evaluator for the table: true exactly when all
// configured channel conditions hold between the two sample words. The
// hardware computes the same function from the written program; this form
// exists for tests and diagnostics.
func (lut *LUT) Evaluate(prev, cur uint16) bool {
	for ch := 0; ch < MaxChannels; ch++ {
		idx := (prev>>ch&1)<<1 | cur>>ch&1
		if lut.tables[ch]&(1<<idx) == 0 {
			return false
		}
	}
	return true
}

// Program serializes the table for the device: 8 bytes, channel i in nibble
// i with the low nibble first, written to the trigger LUT chain while the
// FPGA is in programming mode.
func (lut *LUT) Program() []byte {
	p := make([]byte, MaxChannels/2)
	for ch := 0; ch < MaxChannels; ch += 2 {
		p[ch/2] = lut.tables[ch] | lut.tables[ch+1]<<4
	}
	return p
}

// freeRunLUT returns the all-pass table: every entry true, so a capture
// with no trigger conditions still has a valid program loaded.
func freeRunLUT() *LUT {
	lut := new(LUT)
	for ch := range lut.tables {
		lut.tables[ch] = lutAlways
	}
	return lut
}

// TriggerProgram is what the compiler hands the state machine: exactly one
// of the two variants is set for an armed session, chosen by speed band.
// Neither is set when no channel carries a condition (free-run capture).
type TriggerProgram struct {
	Pin *SinglePin // high band
	LUT *LUT       // standard band
}

// Enabled reports whether the device should arm its trigger at all.
func (prog TriggerProgram) Enabled() bool {
	return prog.Pin != nil || prog.LUT != nil
}

// CompileTrigger converts the abstract per-channel conditions into the
// program the selected band can run. nchan is the enabled channel count
// from the clock-select mask.
//
// The high band offers a single edge-sensitive pin: the lowest-numbered
// channel with a condition is selected, a second condition or any level
// condition is ErrTriggerUnsupported. The standard band compiles every
// condition into the LUT.
func CompileTrigger(spec TriggerSpec, band Band, nchan int) (TriggerProgram, error) {
	if !spec.Enabled() {
		return TriggerProgram{}, nil
	}

	if band == BandStandard {
		lut := new(LUT)
		for ch, m := range spec {
			lut.tables[ch] = lutTable(m)
		}
		return TriggerProgram{LUT: lut}, nil
	}

	pin := -1
	for ch, m := range spec {
		if m == MatchNone {
			continue
		}
		if pin >= 0 {
			return TriggerProgram{}, fmt.Errorf("channels %d and %d both request a condition, high band has one trigger pin: %w",
				pin, ch, ErrTriggerUnsupported)
		}
		if !m.isEdge() {
			return TriggerProgram{}, fmt.Errorf("channel %d requests %s, high band supports only edges: %w",
				ch, m, ErrTriggerUnsupported)
		}
		if ch >= nchan {
			return TriggerProgram{}, fmt.Errorf("channel %d is disabled at this rate (%d channels): %w",
				ch, nchan, ErrTriggerUnsupported)
		}
		pin = ch
	}
	return TriggerProgram{Pin: &SinglePin{
		Pin:         pin,
		FallingEdge: spec[pin] == MatchFalling,
	}}, nil
}
