package fftypes

import "encoding/binary"

// ArgBuffer packs kernel arguments into a binary buffer whose layout mirrors
// the generated kernel's parameter list.  Values are aligned to their own
// width, matching the device ABI for by-value kernel arguments.  Device
// pointers are appended as 64-bit addresses.
type ArgBuffer struct {
	buf []byte
}

func (a *ArgBuffer) append(data []byte, align int) {
	if pad := len(a.buf) % align; pad != 0 {
		a.buf = append(a.buf, make([]byte, align-pad)...)
	}
	a.buf = append(a.buf, data...)
}

// AppendPtr appends an opaque device address.
func (a *ArgBuffer) AppendPtr(addr uint64) {
	a.AppendUint64(addr)
}

// AppendUint32 appends a 32-bit unsigned value.
func (a *ArgBuffer) AppendUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.append(b[:], 4)
}

// AppendUint64 appends a 64-bit unsigned value.
func (a *ArgBuffer) AppendUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	a.append(b[:], 8)
}

// Bytes returns the packed argument buffer.
func (a *ArgBuffer) Bytes() []byte {
	return a.buf
}

// Size returns the packed size in bytes.
func (a *ArgBuffer) Size() int {
	return len(a.buf)
}
