package sigmadaq

import (
	"fmt"
	"sync"
	"time"
)

// SimDevice is a drop-in replacement for a real analyzer (implements
// Transport and FirmwareLoader) that requires no hardware. Register writes
// are recorded, and reads yield a ramp pattern paced at the configured
// sample rate.
type SimDevice struct {
	mu           sync.Mutex
	firmware     string
	writes       []RegisterWrite
	capturing    bool
	lastReadTime time.Time
	rate         uint64
	counter      uint16
}

// RegisterWrite is one recorded register transaction.
type RegisterWrite struct {
	Addr    uint8
	Payload []byte
}

// NewSimDevice returns a simulated analyzer pacing its output at the given
// sample rate.
func NewSimDevice(rate uint64) *SimDevice {
	return &SimDevice{rate: rate}
}

// SetRate changes the pacing rate. Takes effect on the next read.
func (dev *SimDevice) SetRate(rate uint64) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.rate = rate
}

// SimIdentity returns the identity the simulator answers to: a SIGMA2 with
// a fixed serial number.
func SimIdentity() DeviceIdentity {
	id, err := ParseSerial("a602cafe")
	if err != nil {
		panic(err) // the canned serial is known-good
	}
	id.VID = vendorASIX
	id.PID = productSigma
	return id
}

// UploadFirmware pretends to load the named bitstream.
func (dev *SimDevice) UploadFirmware(name string) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.capturing {
		return fmt.Errorf("SimDevice.UploadFirmware: device is capturing")
	}
	dev.firmware = name
	return nil
}

// Firmware reports the last bitstream uploaded.
func (dev *SimDevice) Firmware() string {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.firmware
}

// WriteRegister records the transaction. A write to the mode register with
// the SDRAM write-enable bit set starts the sample ramp.
func (dev *SimDevice) WriteRegister(addr uint8, payload []byte) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.firmware == "" {
		return fmt.Errorf("SimDevice.WriteRegister: no firmware loaded")
	}
	p := make([]byte, len(payload))
	copy(p, payload)
	dev.writes = append(dev.writes, RegisterWrite{Addr: addr, Payload: p})
	if addr == regMode && len(payload) == 1 {
		dev.capturing = payload[0]&modeSDRAMWriteEnable != 0
		dev.lastReadTime = time.Now()
	}
	return nil
}

// Writes returns a copy of every register transaction so far.
func (dev *SimDevice) Writes() []RegisterWrite {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	out := make([]RegisterWrite, len(dev.writes))
	copy(out, dev.writes)
	return out
}

// ReadSamples fills p with as many ramp words as the elapsed wall-clock
// time allows at the configured rate. It never blocks; a poll that arrives
// too soon reads zero bytes.
func (dev *SimDevice) ReadSamples(p []byte) (int, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if !dev.capturing {
		return 0, nil
	}
	now := time.Now()
	elapsed := now.Sub(dev.lastReadTime)
	nwords := int(uint64(elapsed.Nanoseconds()) * dev.rate / uint64(time.Second))
	if nwords == 0 {
		return 0, nil
	}
	if nwords > len(p)/2 {
		nwords = len(p) / 2
	}
	dev.lastReadTime = now
	for i := 0; i < nwords; i++ {
		p[2*i] = byte(dev.counter)
		p[2*i+1] = byte(dev.counter >> 8)
		dev.counter++
	}
	return 2 * nwords, nil
}
