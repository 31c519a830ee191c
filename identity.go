package sigmadaq

import (
	"fmt"
	"strconv"
)

// DeviceGeneration tags the hardware generation, derived from the serial
// number prefix at discovery time.
type DeviceGeneration int

// Names for the possible values of DeviceGeneration
const (
	GenUnknown DeviceGeneration = iota
	GenSigma                    // first generation
	GenSigma2                   // second generation, same control protocol
	GenOmega                    // recognized by prefix, acquisition not implemented
)

var generationNames = map[DeviceGeneration]string{
	GenUnknown: "unknown",
	GenSigma:   "SIGMA",
	GenSigma2:  "SIGMA2",
	GenOmega:   "OMEGA",
}

func (g DeviceGeneration) String() string {
	if name, ok := generationNames[g]; ok {
		return name
	}
	return fmt.Sprintf("DeviceGeneration(%d)", int(g))
}

// Serial-number prefixes of the known generations.
const (
	prefixSigma  uint16 = 0xa601
	prefixSigma2 uint16 = 0xa602
	prefixOmega  uint16 = 0xa603
)

// DeviceIdentity describes one discovered analyzer. It is created at
// discovery and immutable afterward.
type DeviceIdentity struct {
	VID        uint16
	PID        uint16
	Serial     string // serial number as printed on the device, hex text
	SerialNum  uint64
	Prefix     uint16 // top 16 bits of the serial number
	Generation DeviceGeneration
}

// USB IDs the family enumerates under.
const (
	vendorASIX   uint16 = 0xa600
	productSigma uint16 = 0xa000
	productOmega uint16 = 0xa004
)

// ParseSerial interprets a device serial number. Every analyzer in the
// family carries a hexadecimal serial whose top 16 bits identify the
// generation.
func ParseSerial(serno string) (DeviceIdentity, error) {
	num, err := strconv.ParseUint(serno, 16, 64)
	if err != nil {
		return DeviceIdentity{}, fmt.Errorf("cannot interpret serial number %q: %w", serno, err)
	}
	id := DeviceIdentity{
		Serial:    serno,
		SerialNum: num,
		Prefix:    uint16(num >> 16),
	}
	switch id.Prefix {
	case prefixSigma:
		id.Generation = GenSigma
	case prefixSigma2:
		id.Generation = GenSigma2
	case prefixOmega:
		id.Generation = GenOmega
	default:
		return id, fmt.Errorf("unknown serial number prefix 0x%04x in %q", id.Prefix, serno)
	}
	return id, nil
}

// Registry holds the VID/PID pairs this driver claims. It is constructed at
// process start and passed by reference to whatever walks the USB bus; there
// is no implicit global instance.
type Registry struct {
	products map[[2]uint16]bool
}

// NewRegistry returns a registry preloaded with the known analyzer IDs.
func NewRegistry() *Registry {
	r := &Registry{products: make(map[[2]uint16]bool)}
	r.Add(vendorASIX, productSigma)
	r.Add(vendorASIX, productOmega)
	return r
}

// Add claims one more VID/PID pair.
func (r *Registry) Add(vid, pid uint16) {
	r.products[[2]uint16{vid, pid}] = true
}

// Claims reports whether the registry claims the VID/PID pair.
func (r *Registry) Claims(vid, pid uint16) bool {
	return r.products[[2]uint16{vid, pid}]
}

// Identify builds the identity for an enumerated device, or reports that
// the device is not ours.
func (r *Registry) Identify(vid, pid uint16, serno string) (DeviceIdentity, error) {
	if !r.Claims(vid, pid) {
		return DeviceIdentity{}, fmt.Errorf("device %04x:%04x is not a known analyzer", vid, pid)
	}
	id, err := ParseSerial(serno)
	if err != nil {
		return id, err
	}
	id.VID = vid
	id.PID = pid
	return id, nil
}

// Enumerator walks a bus and reports candidate devices. Implementations
// live outside this package; tests use a canned list.
type Enumerator interface {
	Enumerate() ([]DeviceIdentity, error)
}
