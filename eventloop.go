package sigmadaq

import (
	"fmt"
	"sync"
	"time"
)

// SourceHandle identifies one registered data-ready callback.
type SourceHandle int

// SourceRegistrar is the event-loop capability the acquisition state
// machine needs: register a data-ready callback, and take it out again.
// It is injected so the core can be driven by a fake loop in tests.
type SourceRegistrar interface {
	AddSource(onReady func()) (SourceHandle, error)
	RemoveSource(h SourceHandle) error
}

// PollLoop is the in-process event loop: a single goroutine that invokes
// every registered callback once per period. Callbacks therefore all run on
// one goroutine, and a callback may remove its own registration.
//
// The capture hardware has no readable "data ready" line over this
// transport, so the receive path polls, as the original driver did.
type PollLoop struct {
	period time.Duration

	mu      sync.Mutex
	sources map[SourceHandle]func()
	nextID  SourceHandle

	abort chan struct{}
	done  chan struct{}
}

// NewPollLoop creates a loop with the given poll period. Run starts it.
func NewPollLoop(period time.Duration) *PollLoop {
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	return &PollLoop{
		period:  period,
		sources: make(map[SourceHandle]func()),
		abort:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// AddSource registers a callback and returns its handle.
func (pl *PollLoop) AddSource(onReady func()) (SourceHandle, error) {
	if onReady == nil {
		return 0, fmt.Errorf("AddSource requires a non-nil callback")
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.nextID++
	pl.sources[pl.nextID] = onReady
	return pl.nextID, nil
}

// RemoveSource unregisters a callback. Removing a handle twice is an error;
// the state machine relies on that to catch double teardown.
func (pl *PollLoop) RemoveSource(h SourceHandle) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, ok := pl.sources[h]; !ok {
		return fmt.Errorf("RemoveSource: no source with handle %d", h)
	}
	delete(pl.sources, h)
	return nil
}

// Run polls until Stop is called. It is the loop's single goroutine; all
// callbacks run here.
func (pl *PollLoop) Run() {
	defer close(pl.done)
	ticker := time.NewTicker(pl.period)
	defer ticker.Stop()
	for {
		select {
		case <-pl.abort:
			return
		case <-ticker.C:
			for _, onReady := range pl.snapshot() {
				onReady()
			}
		}
	}
}

// snapshot copies the callback list so callbacks can add or remove sources
// without holding the lock during their own execution.
func (pl *PollLoop) snapshot() []func() {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	fns := make([]func(), 0, len(pl.sources))
	for _, fn := range pl.sources {
		fns = append(fns, fn)
	}
	return fns
}

// Stop ends Run and waits for it to return.
func (pl *PollLoop) Stop() {
	closeIfOpen(pl.abort)
	<-pl.done
}

func closeIfOpen(c chan struct{}) {
	select {
	case <-c:
	default:
		close(c)
	}
}
