package sigmadaq

import (
	"fmt"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
)

// AcqState is the acquisition state of one device session.
type AcqState int

// Names for the possible values of AcqState. Idle is both the initial and
// the terminal state. Capturing is entered only by a successful Arm.
// Stopping is entered only from Capturing and is the only way back to Idle
// while a capture is in flight.
const (
	Idle AcqState = iota
	Capturing
	Stopping
)

func (s AcqState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Stopping:
		return "Stopping"
	}
	return fmt.Sprintf("AcqState(%d)", int(s))
}

// Transport is the synchronous byte channel to the device. It is assumed
// reliable and ordered; errors are propagated, never retried here.
type Transport interface {
	WriteRegister(addr uint8, payload []byte) error
	ReadSamples(p []byte) (int, error)
}

// SampleBlock is the neutral representation the receiver delivers
// downstream: consecutive 16-bit sample words, one bit per channel.
// A block with Final set closes the session; Err, when non-nil, is the
// transport failure that ended it.
type SampleBlock struct {
	SessionID  string
	FirstIndex uint64 // index of Words[0], counted from arm
	Words      []uint16
	Final      bool
	Err        error
}

// CaptureConfig is the user-level capture intent. It may be revised any
// number of times while the session is Idle and is read exactly once per
// Arm; nothing mutates it while a capture runs.
type CaptureConfig struct {
	SampleRate   uint64 // already normalized
	CaptureRatio int    // percent of the buffer kept after the trigger, 0..100
	Limits       CaptureLimits
	Trigger      TriggerSpec
}

// CaptureRecord summarizes one finished capture for the metadata journal.
type CaptureRecord struct {
	ID         string
	Serial     string
	Generation string
	SampleRate uint64
	Band       string
	Triggered  bool
	Start      time.Time
	End        time.Time
	Samples    uint64
	Err        string
}

// SessionJournal records finished captures. Implementations must not block
// the acquisition path.
type SessionJournal interface {
	RecordCapture(*CaptureRecord)
}

const readBufSize = 4096

// SigmaSource is the acquisition state machine for one analyzer. All
// methods are safe for concurrent use, but the receive path itself runs on
// the event loop's single goroutine.
type SigmaSource struct {
	identity DeviceIdentity
	tr       Transport
	loop     SourceRegistrar
	fw       FirmwareLoader

	journal SessionJournal
	updates chan<- StatusUpdate

	stateLock sync.Mutex // guards everything below
	state     AcqState
	cfg       CaptureConfig
	triggers  bool // runtime capability flag; false removes the trigger surface

	handle      SourceHandle
	registered  bool
	curFirmware string
	program     TriggerProgram
	sessionID   string
	armedAt     time.Time
	deadline    time.Time // zero means no acquisition timeout

	blocks  chan *SampleBlock
	readbuf []byte
	nLeft   int // undecoded trailing byte count carried between reads
}

// NewSigmaSource creates an Idle session for one discovered device.
func NewSigmaSource(id DeviceIdentity, tr Transport, loop SourceRegistrar, fw FirmwareLoader) *SigmaSource {
	return &SigmaSource{
		identity: id,
		tr:       tr,
		loop:     loop,
		fw:       fw,
		triggers: true,
		cfg: CaptureConfig{
			SampleRate:   sampleRates[0],
			CaptureRatio: 50,
		},
		blocks:  make(chan *SampleBlock, 256),
		readbuf: make([]byte, readBufSize),
	}
}

// Identity returns the immutable identity of the device.
func (src *SigmaSource) Identity() DeviceIdentity {
	return src.identity
}

// Blocks returns the channel the receiver delivers decoded samples on. The
// channel stays open across sessions; a block with Final set marks the end
// of each one. Consumers must keep draining it while a capture runs.
func (src *SigmaSource) Blocks() <-chan *SampleBlock {
	return src.blocks
}

// SetJournal attaches a capture-metadata journal. Only legal while Idle.
func (src *SigmaSource) SetJournal(j SessionJournal) error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state != Idle {
		return fmt.Errorf("cannot change journal in state %v", src.state)
	}
	src.journal = j
	return nil
}

// SetStatusSink attaches a channel for state-change messages. Sends never
// block; a full sink drops messages rather than stalling acquisition.
func (src *SigmaSource) SetStatusSink(updates chan<- StatusUpdate) {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	src.updates = updates
}

// SetTriggersEnabled flips the runtime trigger capability. With triggers
// disabled the trigger and capture-ratio configuration surface disappears
// and captures always free-run. Only legal while Idle.
func (src *SigmaSource) SetTriggersEnabled(enable bool) error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state != Idle {
		return fmt.Errorf("cannot change trigger capability in state %v", src.state)
	}
	src.triggers = enable
	return nil
}

// TriggersEnabled reports the runtime trigger capability flag.
func (src *SigmaSource) TriggersEnabled() bool {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	return src.triggers
}

// State returns the acquisition state in a race-free fashion.
func (src *SigmaSource) State() AcqState {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	return src.state
}

// Running reports whether a capture is in flight (Capturing or Stopping).
func (src *SigmaSource) Running() bool {
	return src.State() != Idle
}

// SampleRate returns the configured (normalized) sample rate.
func (src *SigmaSource) SampleRate() uint64 {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	return src.cfg.SampleRate
}

// SetSampleRate normalizes and stores a requested sample rate, returning
// the rate actually configured. An adjusted rate is logged, not an error.
// Only legal while Idle.
func (src *SigmaSource) SetSampleRate(want uint64) (uint64, error) {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state != Idle {
		return 0, fmt.Errorf("cannot change sample rate in state %v", src.state)
	}
	have, err := NormalizeRate(want)
	if err != nil {
		return 0, err
	}
	if have != want {
		UpdateLogger.Printf("adjusted sample rate %d Hz to %d Hz", want, have)
	}
	src.cfg.SampleRate = have
	viper.Set("sigma.samplerate", have)
	return have, nil
}

// Limits returns the configured sample-count and time limits (zero means
// unlimited).
func (src *SigmaSource) Limits() (uint64, time.Duration) {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	return src.cfg.Limits.MaxSamples, src.cfg.Limits.MaxDuration
}

// SetLimits configures the sample-count and time limits. Only legal while
// Idle.
func (src *SigmaSource) SetLimits(maxSamples uint64, maxDuration time.Duration) error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state != Idle {
		return fmt.Errorf("cannot change limits in state %v", src.state)
	}
	src.cfg.Limits.MaxSamples = maxSamples
	src.cfg.Limits.MaxDuration = maxDuration
	viper.Set("sigma.limitsamples", maxSamples)
	viper.Set("sigma.limitmsec", maxDuration.Milliseconds())
	return nil
}

// CaptureRatio returns the post-trigger capture ratio in percent.
func (src *SigmaSource) CaptureRatio() (int, error) {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if !src.triggers {
		return 0, fmt.Errorf("capture ratio requires the trigger capability")
	}
	return src.cfg.CaptureRatio, nil
}

// SetCaptureRatio configures the share of the buffer kept after the
// trigger, 0..100 percent. Only legal while Idle.
func (src *SigmaSource) SetCaptureRatio(ratio int) error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state != Idle {
		return fmt.Errorf("cannot change capture ratio in state %v", src.state)
	}
	if !src.triggers {
		return fmt.Errorf("capture ratio requires the trigger capability")
	}
	if ratio < 0 || ratio > 100 {
		return fmt.Errorf("capture ratio %d%% out of range 0..100", ratio)
	}
	src.cfg.CaptureRatio = ratio
	viper.Set("sigma.captureratio", ratio)
	return nil
}

// TriggerMatches returns the per-channel trigger conditions.
func (src *SigmaSource) TriggerMatches() TriggerSpec {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	return src.cfg.Trigger
}

// SetTriggerMatch assigns one channel's trigger condition. Only legal while
// Idle. Feasibility against the speed band is checked at arm time, not
// here, so users can set conditions and rate in either order.
func (src *SigmaSource) SetTriggerMatch(channel int, m TriggerMatch) error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state != Idle {
		return fmt.Errorf("cannot change triggers in state %v", src.state)
	}
	if !src.triggers {
		return fmt.Errorf("trigger conditions require the trigger capability")
	}
	if channel < 0 || channel >= MaxChannels {
		return fmt.Errorf("channel %d out of range 0..%d", channel, MaxChannels-1)
	}
	if _, ok := matchNames[m]; !ok {
		return fmt.Errorf("unknown trigger match %d", int(m))
	}
	src.cfg.Trigger[channel] = m
	return nil
}

// TriggerVocabulary lists the conditions the configuration surface accepts,
// or nil when the trigger capability is off.
func (src *SigmaSource) TriggerVocabulary() []TriggerMatch {
	if !src.TriggersEnabled() {
		return nil
	}
	return []TriggerMatch{MatchLow, MatchHigh, MatchRising, MatchFalling}
}

// RestoreConfig loads previously stored capture settings from viper,
// normalizing as it goes. Missing keys keep their defaults.
func (src *SigmaSource) RestoreConfig() {
	if rate := viper.GetUint64("sigma.samplerate"); rate > 0 {
		if _, err := src.SetSampleRate(rate); err != nil {
			ProblemLogger.Printf("stored sample rate %d rejected: %v", rate, err)
		}
	}
	maxSamples := viper.GetUint64("sigma.limitsamples")
	maxMsec := viper.GetInt64("sigma.limitmsec")
	if maxSamples > 0 || maxMsec > 0 {
		src.SetLimits(maxSamples, time.Duration(maxMsec)*time.Millisecond)
	}
	if viper.IsSet("sigma.captureratio") && src.TriggersEnabled() {
		if err := src.SetCaptureRatio(viper.GetInt("sigma.captureratio")); err != nil {
			ProblemLogger.Printf("stored capture ratio rejected: %v", err)
		}
	}
}

// Arm writes the full register configuration and starts a capture. Only
// legal from Idle. Any failure leaves the device session Idle with the
// receiver unregistered.
func (src *SigmaSource) Arm() error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()

	if src.state != Idle {
		return fmt.Errorf("cannot arm from state %v, must be Idle", src.state)
	}
	switch src.identity.Generation {
	case GenSigma, GenSigma2:
	default:
		return fmt.Errorf("%s (serial %s): %w",
			src.identity.Generation, src.identity.Serial, ErrUnsupportedDevice)
	}

	rate := src.cfg.SampleRate
	band := RateBand(rate)
	clock, err := SynthesizeClock(rate)
	if err != nil {
		return err
	}

	spec := src.cfg.Trigger
	if !src.triggers {
		spec = TriggerSpec{}
	}
	prog, err := CompileTrigger(spec, band, clock.EnabledChannels())
	if err != nil {
		return err
	}

	if err := src.loadFirmware(rate); err != nil {
		return err
	}

	if err := src.writeArmSequence(band, clock, prog); err != nil {
		return err
	}

	handle, err := src.loop.AddSource(src.onDataReady)
	if err != nil {
		return fmt.Errorf("registering receive source: %w", err)
	}

	now := time.Now()
	src.handle = handle
	src.registered = true
	src.program = prog
	src.sessionID = ulid.Make().String()
	src.armedAt = now
	src.nLeft = 0
	src.cfg.Limits.Start(now)
	src.deadline = time.Time{}
	if timeout := src.cfg.Limits.Timeout(rate); timeout > 0 {
		src.deadline = now.Add(timeout)
	}
	src.state = Capturing

	UpdateLogger.Printf("armed %s (serial %s) session %s at %d Hz (%s band)",
		src.identity.Generation, src.identity.Serial, src.sessionID, rate, band)
	if viper.GetBool("Verbose") {
		UpdateLogger.Print(spew.Sdump(src.cfg))
	}
	src.sendStatusLocked("CAPTURE")
	return nil
}

// loadFirmware uploads the image the rate's band needs, unless it is
// already resident from an earlier session.
func (src *SigmaSource) loadFirmware(rate uint64) error {
	name, err := FirmwareForRate(rate)
	if err != nil {
		return err
	}
	if name == src.curFirmware {
		return nil
	}
	if err := src.fw.UploadFirmware(name); err != nil {
		return fmt.Errorf("uploading firmware %s: %w", name, err)
	}
	src.curFirmware = name
	return nil
}

// writeArmSequence issues the register writes that configure a capture, in
// the order the firmware expects. The trigger LUT must be fully programmed,
// and programming mode left again, before the remaining registers are set.
func (src *SigmaSource) writeArmSequence(band Band, clock ClockSelect, prog TriggerProgram) error {
	write := func(addr uint8, payload []byte) error {
		if err := src.tr.WriteRegister(addr, payload); err != nil {
			return fmt.Errorf("writing register 0x%02x: %w", addr, err)
		}
		return nil
	}

	// Enter trigger programming mode.
	if err := write(regTriggerSelect2, []byte{selectLUTProgram}); err != nil {
		return err
	}

	switch band {
	case BandHigh:
		selector := uint8(0)
		if prog.Pin != nil {
			selector = prog.Pin.Selector()
		}
		if err := write(regTriggerSelect2, []byte{selector}); err != nil {
			return err
		}
	case BandStandard:
		// The hardware always evaluates a LUT in this band; a free run
		// loads the all-pass table and simply never enables the trigger.
		lut := prog.LUT
		if lut == nil {
			lut = freeRunLUT()
		}
		if err := write(regTriggerSelect0, lut.Program()); err != nil {
			return err
		}
		if err := write(regTriggerSelect2, []byte{selectLUTNormal}); err != nil {
			return err
		}
	}

	opt := TriggerOption{AssertOnTrigger: true, TriggerOutEnable: true}
	if err := write(regTriggerOption, EncodeTriggerOption(opt)); err != nil {
		return err
	}
	if err := write(regClockSelect, EncodeClockSelect(clock)); err != nil {
		return err
	}
	if err := write(regPostTrigger, []byte{PostTriggerValue(src.cfg.CaptureRatio)}); err != nil {
		return err
	}
	mode := ModeFlags{
		TriggerReset:     true,
		SDRAMWriteEnable: true,
		TriggerEnable:    prog.Enabled(),
	}
	return write(regMode, EncodeMode(mode))
}

// Stop requests the end of a running capture. From Capturing it defers the
// actual teardown to the next receiver invocation, so sample data the
// device is still flushing is not lost. From Stopping or Idle it is a
// no-op; Stop is idempotent.
func (src *SigmaSource) Stop() error {
	src.stateLock.Lock()
	defer src.stateLock.Unlock()
	if src.state == Capturing {
		src.state = Stopping
		src.sendStatusLocked("STOPPING")
	}
	return nil
}

// sendStatusLocked pushes a state-change message without ever blocking.
func (src *SigmaSource) sendStatusLocked(tag string) {
	if src.updates == nil {
		return
	}
	update := StatusUpdate{
		Tag: tag,
		State: SessionStatus{
			Serial:     src.identity.Serial,
			SessionID:  src.sessionID,
			State:      src.state.String(),
			SampleRate: src.cfg.SampleRate,
			Samples:    src.cfg.Limits.Delivered(),
		},
	}
	select {
	case src.updates <- update:
	default:
	}
}
