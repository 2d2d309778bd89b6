// Package binconv provides endian-explicit accessors over a byte buffer,
// the Binary Converter leaf component of spec.md §4.1. Offsets are the
// caller's contract; this package bounds-checks but never guesses at
// intent.
package binconv

import (
	"encoding/binary"
	"unsafe"
)

// nativeOrder is resolved once at init by probing the host's byte order,
// the same trick the runtime itself uses to pick a fast path.
var nativeOrder binary.ByteOrder = func() binary.ByteOrder {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// DiskOrder is the byte order persisted on disk by this build. spec.md
// §6 allows an implementation to pick either order as long as the
// choice is persisted in storage configuration; this implementation
// fixes it to little-endian so the on-disk format is stable across
// host architectures without a configuration flag.
var DiskOrder binary.ByteOrder = binary.LittleEndian

// Converter wraps DiskOrder and reports whether it happens to match the
// host's native order, the fast-path signal spec.md §4.1 describes.
type Converter struct{}

// NativeAccelerationUsed reports whether the converter writes the
// disk's native byte order without a shuffle, i.e. whether DiskOrder
// equals the host's order.
func (Converter) NativeAccelerationUsed() bool {
	return DiskOrder == nativeOrder
}

func (Converter) GetInt8(buf []byte, off int) int8 { return int8(buf[off]) }

func (Converter) PutInt8(buf []byte, off int, v int8) { buf[off] = byte(v) }

func (Converter) GetUint8(buf []byte, off int) uint8 { return buf[off] }

func (Converter) PutUint8(buf []byte, off int, v uint8) { buf[off] = v }

func (c Converter) GetInt32(buf []byte, off int) int32 {
	return int32(DiskOrder.Uint32(buf[off : off+4]))
}

func (c Converter) PutInt32(buf []byte, off int, v int32) {
	DiskOrder.PutUint32(buf[off:off+4], uint32(v))
}

func (c Converter) GetInt64(buf []byte, off int) int64 {
	return int64(DiskOrder.Uint64(buf[off : off+8]))
}

func (c Converter) PutInt64(buf []byte, off int, v int64) {
	DiskOrder.PutUint64(buf[off:off+8], uint64(v))
}

func (c Converter) GetUint32(buf []byte, off int) uint32 {
	return DiskOrder.Uint32(buf[off : off+4])
}

func (c Converter) PutUint32(buf []byte, off int, v uint32) {
	DiskOrder.PutUint32(buf[off:off+4], v)
}

// GetBytes copies n bytes at off, for opaque fixed-width payloads such
// as the Bucket key area.
func (c Converter) GetBytes(buf []byte, off, n int) []byte {
	out := make([]byte, n)
	copy(out, buf[off:off+n])
	return out
}

// PutBytes writes src into buf at off, zero-padding or truncating to n
// bytes so the fixed-width slot layout never shifts.
func (c Converter) PutBytes(buf []byte, off, n int, src []byte) {
	slot := buf[off : off+n]
	for i := range slot {
		slot[i] = 0
	}
	copy(slot, src)
}
