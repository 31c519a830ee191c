// Package getbytes converts sample slices to []byte without copying, using
// unsafe.Slice. The publishers move enough data that binary.Write would be
// a measurable cost.
package getbytes

import (
	"unsafe"
)

// FromSliceUint16 converts a []uint16 to []byte using unsafe
func FromSliceUint16(d []uint16) []byte {
	if len(d) == 0 {
		return []byte{}
	}
	outlength := uintptr(len(d)) * unsafe.Sizeof(d[0]) / unsafe.Sizeof(byte(0))
	return unsafe.Slice((*byte)(unsafe.Pointer(&d[0])), outlength)
}
