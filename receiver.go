package sigmadaq

import (
	"encoding/binary"
	"fmt"
	"time"
)

// onDataReady is the sample receiver: the event loop invokes it when the
// transport may have data. It pulls the device buffer, decodes sample
// words, forwards them downstream, and polls the stop/limit conditions.
// Being invoked with nothing available is a no-op, not an error.
func (src *SigmaSource) onDataReady() {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()

	if src.state == Idle {
		// Stale invocation from a poll cycle that snapshotted the
		// callback before teardown removed it.
		return
	}

	n, err := src.tr.ReadSamples(src.readbuf[src.nLeft:])
	if err != nil {
		// A transport failure mid-capture leaves the device register
		// state untrusted: force the session down and surface the
		// error on the sample channel.
		src.teardownLocked(fmt.Errorf("reading samples: %w", err))
		return
	}
	src.deliverLocked(src.nLeft + n)

	now := time.Now()
	switch {
	case src.state == Stopping:
		// Deferred stop: the final buffered samples just went out.
		src.teardownLocked(nil)
	case src.cfg.Limits.Reached(now):
		// Same effect as an external Stop: teardown happens on the
		// next invocation, after the device finishes flushing.
		src.state = Stopping
		src.sendStatusLocked("STOPPING")
	case !src.deadline.IsZero() && now.After(src.deadline):
		ProblemLogger.Printf("session %s passed its acquisition timeout", src.sessionID)
		src.state = Stopping
		src.sendStatusLocked("STOPPING")
	}
}

// deliverLocked decodes total buffered bytes into little-endian 16-bit
// sample words and sends them downstream. An odd trailing byte is carried
// over to the next read.
func (src *SigmaSource) deliverLocked(total int) {
	nwords := total / 2
	if nwords > 0 {
		words := make([]uint16, nwords)
		for i := range words {
			words[i] = binary.LittleEndian.Uint16(src.readbuf[2*i:])
		}
		block := &SampleBlock{
			SessionID:  src.sessionID,
			FirstIndex: src.cfg.Limits.Delivered(),
			Words:      words,
		}
		src.cfg.Limits.Update(nwords)
		src.blocks <- block
	}
	src.nLeft = total % 2
	if src.nLeft == 1 {
		src.readbuf[0] = src.readbuf[total-1]
	}
}

// teardownLocked unregisters the receiver, returns to Idle, and emits the
// final block. It runs exactly once per session: callers only reach it from
// Capturing or Stopping.
func (src *SigmaSource) teardownLocked(cause error) {
	if src.registered {
		if err := src.loop.RemoveSource(src.handle); err != nil {
			ProblemLogger.Printf("removing receive source: %v", err)
		}
		src.registered = false
	}
	end := time.Now()
	record := &CaptureRecord{
		ID:         src.sessionID,
		Serial:     src.identity.Serial,
		Generation: src.identity.Generation.String(),
		SampleRate: src.cfg.SampleRate,
		Band:       RateBand(src.cfg.SampleRate).String(),
		Triggered:  src.program.Enabled(),
		Start:      src.armedAt,
		End:        end,
		Samples:    src.cfg.Limits.Delivered(),
	}
	if cause != nil {
		record.Err = cause.Error()
		ProblemLogger.Printf("session %s ended with error: %v", src.sessionID, cause)
	}

	src.state = Idle
	src.program = TriggerProgram{}
	src.blocks <- &SampleBlock{
		SessionID:  src.sessionID,
		FirstIndex: src.cfg.Limits.Delivered(),
		Final:      true,
		Err:        cause,
	}
	if src.journal != nil {
		src.journal.RecordCapture(record)
	}
	src.sendStatusLocked("IDLE")
	UpdateLogger.Printf("session %s idle after %d samples", src.sessionID, record.Samples)
}
