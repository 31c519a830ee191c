package sigmadaq

import (
	"bytes"
	"testing"
)

func TestEncodeClockSelect(t *testing.T) {
	cs := ClockSelect{Async: 0, Fraction: 49, DisabledChannels: 0xf0ff}
	p := EncodeClockSelect(cs)
	if want := []byte{0x00, 49, 0xff, 0xf0}; !bytes.Equal(p, want) {
		t.Errorf("EncodeClockSelect=% x, want % x", p, want)
	}
	back, err := DecodeClockSelect(p)
	if err != nil {
		t.Fatalf("DecodeClockSelect failed: %v", err)
	}
	if back != cs {
		t.Errorf("clock-select round trip gave %+v, want %+v", back, cs)
	}
	if _, err := DecodeClockSelect([]byte{1, 2}); err == nil {
		t.Error("DecodeClockSelect accepted a 2-byte payload")
	}
}

func TestModeAndOptionBits(t *testing.T) {
	m := ModeFlags{TriggerReset: true, SDRAMWriteEnable: true, TriggerEnable: true}
	if p := EncodeMode(m); p[0] != 0x34 {
		t.Errorf("EncodeMode(all)=%#02x, want 0x34", p[0])
	}
	m.TriggerEnable = false
	if p := EncodeMode(m); p[0] != 0x14 {
		t.Errorf("EncodeMode(no trigger)=%#02x, want 0x14", p[0])
	}
	back, err := DecodeMode(EncodeMode(m))
	if err != nil || back != m {
		t.Errorf("mode round trip gave %+v (err %v), want %+v", back, err, m)
	}

	opt := TriggerOption{AssertOnTrigger: true, TriggerOutEnable: true}
	if p := EncodeTriggerOption(opt); p[0] != 0x03 {
		t.Errorf("EncodeTriggerOption(both)=%#02x, want 0x03", p[0])
	}
	back2, err := DecodeTriggerOption([]byte{0x01})
	if err != nil {
		t.Fatalf("DecodeTriggerOption failed: %v", err)
	}
	if !back2.AssertOnTrigger || back2.TriggerOutEnable {
		t.Errorf("DecodeTriggerOption(0x01)=%+v, want assert only", back2)
	}
}

// TestPostTriggerValue checks the truncating percent-to-byte conversion,
// including the documented 50% -> 127 case.
func TestPostTriggerValue(t *testing.T) {
	var tests = []struct {
		ratio int
		value uint8
	}{
		{0, 0},
		{1, 2},
		{50, 127},
		{99, 252},
		{100, 255},
		{-5, 0},    // clamped
		{150, 255}, // clamped
	}
	for _, test := range tests {
		if v := PostTriggerValue(test.ratio); v != test.value {
			t.Errorf("PostTriggerValue(%d)=%d, want %d", test.ratio, v, test.value)
		}
	}
}
