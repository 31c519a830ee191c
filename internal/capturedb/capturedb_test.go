package capturedb

import (
	"testing"
	"time"

	"github.com/probelab/sigmadaq"
)

// TestDummyJournal checks that the no-server paths are safe: a dummy
// journal accepts records and disconnects without touching a database.
func TestDummyJournal(t *testing.T) {
	db := DummyJournal()
	if db.IsConnected() {
		t.Error("DummyJournal.IsConnected()==true, want false")
	}
	record := &sigmadaq.CaptureRecord{
		ID:     "01TESTTESTTESTTESTTESTTEST",
		Serial: "a6010203",
		Start:  time.Now(),
		End:    time.Now(),
	}
	db.RecordCapture(record) // must be a no-op, not a panic
	db.RecordCapture(nil)
	db.Disconnect()

	var nilJournal *Journal
	if nilJournal.IsConnected() {
		t.Error("nil journal reports connected")
	}
}

func TestActivityMessage(t *testing.T) {
	ae := NewActivityMessage()
	if len(ae.ID) != 26 {
		t.Errorf("activity ID %q has length %d, want a 26-char ULID", ae.ID, len(ae.ID))
	}
	if ae.CPUs < 1 {
		t.Errorf("activity entry reports %d CPUs", ae.CPUs)
	}
	if ae.Start.After(ae.End) {
		t.Error("activity entry starts after it ends")
	}
}
