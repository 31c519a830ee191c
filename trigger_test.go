package sigmadaq

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCompileFreeRun checks that an empty condition set compiles to the
// empty program in both bands.
func TestCompileFreeRun(t *testing.T) {
	for _, band := range []Band{BandStandard, BandHigh} {
		prog, err := CompileTrigger(TriggerSpec{}, band, 16)
		assert.NoError(t, err, "free run in %v band", band)
		assert.False(t, prog.Enabled(), "free-run program in %v band reports Enabled", band)
	}
}

// TestCompileLUT compiles a rising edge on channel 3 and checks the table
// against the reference evaluator for every (previous, current) word pair
// on the low 5 channels.
func TestCompileLUT(t *testing.T) {
	var spec TriggerSpec
	spec[3] = MatchRising
	prog, err := CompileTrigger(spec, BandStandard, 16)
	if err != nil {
		t.Fatalf("CompileTrigger failed: %v", err)
	}
	if prog.LUT == nil || prog.Pin != nil {
		t.Fatalf("standard band compiled to %+v, want a LUT program", prog)
	}
	for prev := uint16(0); prev < 32; prev++ {
		for cur := uint16(0); cur < 32; cur++ {
			want := prev&0x8 == 0 && cur&0x8 != 0
			if got := prog.LUT.Evaluate(prev, cur); got != want {
				t.Errorf("Evaluate(%#02x, %#02x)=%v, want %v", prev, cur, got, want)
			}
		}
	}
}

// TestCompileLUTConjunction checks that two conditions must hold at once.
func TestCompileLUTConjunction(t *testing.T) {
	var spec TriggerSpec
	spec[0] = MatchHigh
	spec[1] = MatchFalling
	prog, err := CompileTrigger(spec, BandStandard, 16)
	if err != nil {
		t.Fatalf("CompileTrigger failed: %v", err)
	}
	var tests = []struct {
		prev, cur uint16
		fires     bool
	}{
		{0x2, 0x1, true},  // ch1 falls while ch0 is high
		{0x3, 0x1, true},  // same, ch0 high on both sides
		{0x2, 0x0, false}, // ch1 falls but ch0 is low
		{0x0, 0x1, false}, // ch0 high but no fall on ch1
		{0x3, 0x3, false},
	}
	for _, test := range tests {
		if got := prog.LUT.Evaluate(test.prev, test.cur); got != test.fires {
			t.Errorf("Evaluate(%#02x, %#02x)=%v, want %v", test.prev, test.cur, got, test.fires)
		}
	}
}

// TestLUTProgramBytes checks the serialized table layout: channel i in
// nibble i, low nibble first.
func TestLUTProgramBytes(t *testing.T) {
	var spec TriggerSpec
	spec[0] = MatchHigh
	spec[3] = MatchRising
	prog, err := CompileTrigger(spec, BandStandard, 16)
	if err != nil {
		t.Fatalf("CompileTrigger failed: %v", err)
	}
	p := prog.LUT.Program()
	want := []byte{0xfa, 0x2f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if !bytes.Equal(p, want) {
		t.Errorf("LUT program = % x, want % x", p, want)
	}
}

// TestCompileSinglePin checks the high-band compilation and its selector
// byte.
func TestCompileSinglePin(t *testing.T) {
	var spec TriggerSpec
	spec[2] = MatchRising
	prog, err := CompileTrigger(spec, BandHigh, 4)
	if err != nil {
		t.Fatalf("CompileTrigger failed: %v", err)
	}
	if prog.Pin == nil || prog.LUT != nil {
		t.Fatalf("high band compiled to %+v, want a single-pin program", prog)
	}
	assert.Equal(t, 2, prog.Pin.Pin, "selected pin")
	assert.False(t, prog.Pin.FallingEdge, "edge sense")
	assert.Equal(t, uint8(0x82), prog.Pin.Selector(), "selector byte")

	spec[2] = MatchFalling
	prog, err = CompileTrigger(spec, BandHigh, 4)
	if err != nil {
		t.Fatalf("CompileTrigger failed: %v", err)
	}
	if sel := prog.Pin.Selector(); sel != 0x8a {
		t.Errorf("falling Selector()=%#02x, want 0x8a", sel)
	}
}

// TestCompileSinglePinRejects checks the three ways a condition set can be
// infeasible in the high band.
func TestCompileSinglePinRejects(t *testing.T) {
	var two TriggerSpec
	two[0] = MatchRising
	two[5] = MatchFalling
	if _, err := CompileTrigger(two, BandHigh, 8); !errors.Is(err, ErrTriggerUnsupported) {
		t.Errorf("two conditions: err=%v, want ErrTriggerUnsupported", err)
	}

	var level TriggerSpec
	level[1] = MatchHigh
	if _, err := CompileTrigger(level, BandHigh, 8); !errors.Is(err, ErrTriggerUnsupported) {
		t.Errorf("level condition: err=%v, want ErrTriggerUnsupported", err)
	}

	var disabled TriggerSpec
	disabled[5] = MatchRising
	if _, err := CompileTrigger(disabled, BandHigh, 4); !errors.Is(err, ErrTriggerUnsupported) {
		t.Errorf("disabled channel: err=%v, want ErrTriggerUnsupported", err)
	}
	// The same condition is fine in the standard band.
	if _, err := CompileTrigger(disabled, BandStandard, 16); err != nil {
		t.Errorf("standard band rejected channel 5: %v", err)
	}
}
