// Package bucket implements the fixed-size on-disk record container
// described in spec.md §4.2/§6: a 64-slot key/value area plus an
// overflow pointer, with per-slot dirty tracking and writeback
// registration.
package bucket

import (
	"bytes"
	"io"

	"github.com/orientcore/shardstore/bucket/binconv"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/shardingerr"
)

// Fixed layout constants, spec.md §6.
const (
	Capacity    = 64  // BUCKET_CAPACITY
	KeySize     = 192 // bytes per key slot
	headerSize  = 1   // the size byte at offset 0
	keyAreaSize = Capacity * KeySize
	valueSize   = record.Size // 13 + VersionSize, see record.Size

	// FirstValuePos is the byte offset where the value area begins.
	FirstValuePos = headerSize + keyAreaSize
	valueAreaSize = Capacity * valueSize

	// OverflowPos is the byte offset of the 8-byte overflow pointer.
	OverflowPos = FirstValuePos + valueAreaSize

	// SizeInBytes is the total fixed size of one serialized bucket.
	SizeInBytes = OverflowPos + 8
)

// NoOverflow is the value OverflowBucket returns when a bucket has no
// overflow chained to it.
const NoOverflow int64 = -1

// WritebackRegistry receives dirty-bucket notifications so the owning
// local cluster can batch sequential disk writes (spec.md §4.2,
// "registers itself with a writeback list on mutation").
type WritebackRegistry interface {
	RegisterDirty(b *Bucket)
}

// Bucket is one fixed-size on-disk slot array. The in-memory buffer is
// always the source of truth (spec.md §9's resolution of the dirty-flag
// duplication note): mutators write straight through to buf and mark
// the affected region dirty for the next Serialize flush.
type Bucket struct {
	conv binconv.Converter

	buf        []byte
	clusterID  int16
	index      int64 // this bucket's own slot index within its cluster's file
	isOverflow bool

	registry WritebackRegistry

	dirtyKey   [Capacity]bool
	dirtyValue [Capacity]bool
	overflowDirty bool
	sizeDirty     bool

	overflowCache      int64
	overflowCacheValid bool
}

// New allocates a fresh, zeroed bucket for the given cluster and slot
// index. isOverflow marks it reachable only through another bucket's
// overflow pointer (spec.md §3).
func New(clusterID int16, index int64, isOverflow bool) *Bucket {
	return NewFromBuffer(make([]byte, SizeInBytes), clusterID, index, isOverflow)
}

// NewFromBuffer builds a Bucket over a buffer loaded from disk (or
// handed back by a prior Serialize round trip). buf must be exactly
// SizeInBytes long.
func NewFromBuffer(buf []byte, clusterID int16, index int64, isOverflow bool) *Bucket {
	if len(buf) != SizeInBytes {
		panic("bucket: buffer must be exactly SizeInBytes long")
	}
	return &Bucket{
		buf:        buf,
		clusterID:  clusterID,
		index:      index,
		isOverflow: isOverflow,
	}
}

// SetRegistry attaches the writeback registry a mutation notifies.
func (b *Bucket) SetRegistry(r WritebackRegistry) { b.registry = r }

// IsOverflowBucket reports whether this bucket is only reachable
// through another bucket's overflow pointer.
func (b *Bucket) IsOverflowBucket() bool { return b.isOverflow }

// ClusterID returns the owning cluster id.
func (b *Bucket) ClusterID() int16 { return b.clusterID }

// Index returns this bucket's own slot index within its cluster file.
func (b *Bucket) Index() int64 { return b.index }

// Buffer returns the raw backing buffer. Callers must not retain it
// across further mutation without copying.
func (b *Bucket) Buffer() []byte { return b.buf }

func (b *Bucket) notifyDirty() {
	if b.registry != nil {
		b.registry.RegisterDirty(b)
	}
}

// Size returns the number of occupied slots, invariant ∈ [0, Capacity].
func (b *Bucket) Size() uint8 { return b.conv.GetUint8(b.buf, 0) }

func (b *Bucket) setSize(v uint8) {
	b.conv.PutUint8(b.buf, 0, v)
	b.sizeDirty = true
}

// OverflowBucket returns the chained overflow bucket index, or
// NoOverflow if none is set (spec.md §4.2, §8 property 5).
func (b *Bucket) OverflowBucket() int64 {
	if b.overflowCacheValid {
		return b.overflowCache
	}
	stored := b.conv.GetInt64(b.buf, OverflowPos)
	v := stored - 1
	b.overflowCache = v
	b.overflowCacheValid = true
	return v
}

// SetOverflowBucket sets the chained overflow bucket index, marks the
// pointer dirty, and registers with the writeback list.
func (b *Bucket) SetOverflowBucket(idx int64) {
	b.conv.PutInt64(b.buf, OverflowPos, idx+1)
	b.overflowCache = idx
	b.overflowCacheValid = true
	b.overflowDirty = true
	b.notifyDirty()
}

func keyOffset(i int) int   { return headerSize + i*KeySize }
func valueOffset(i int) int { return FirstValuePos + i*valueSize }

// Key returns a copy of the key stored at slot i.
func (b *Bucket) Key(i int) []byte {
	return b.conv.GetBytes(b.buf, keyOffset(i), KeySize)
}

func (b *Bucket) setKey(i int, key []byte) {
	b.conv.PutBytes(b.buf, keyOffset(i), KeySize, key)
	b.dirtyKey[i] = true
}

// PhysicalPosition decodes the value tuple stored at slot i.
func (b *Bucket) PhysicalPosition(i int) (record.PhysicalPosition, error) {
	if i < 0 || i >= int(b.Size()) {
		return record.PhysicalPosition{}, shardingerr.WithDetail(shardingerr.ErrSerialization, "physical position index out of occupied range")
	}
	off := valueOffset(i)
	return record.PhysicalPosition{
		DataSegmentID:  b.conv.GetInt32(b.buf, off),
		DataSegmentPos: b.conv.GetInt64(b.buf, off+4),
		RecordType:     record.RecordType(b.conv.GetInt8(b.buf, off+12)),
		RecordVersion:  record.Version(b.conv.GetUint32(b.buf, off+13)),
	}, nil
}

func (b *Bucket) setPhysicalPosition(i int, pp record.PhysicalPosition) {
	off := valueOffset(i)
	b.conv.PutInt32(b.buf, off, pp.DataSegmentID)
	b.conv.PutInt64(b.buf, off+4, pp.DataSegmentPos)
	b.conv.PutInt8(b.buf, off+12, int8(pp.RecordType))
	b.conv.PutUint32(b.buf, off+13, uint32(pp.RecordVersion))
	b.dirtyValue[i] = true
}

// ErrBucketFull is returned by AddPhysicalPosition when the bucket is
// already at Capacity; the caller is responsible for allocating an
// overflow bucket (spec.md §4.2).
var ErrBucketFull = shardingerr.WithDetail(shardingerr.ErrLocalStorage, "bucket is full")

// AddPhysicalPosition writes key at the next free slot, stores pp, and
// bumps Size. It fails with ErrBucketFull if the bucket has no free
// slot; allocating the overflow chain is the caller's duty.
func (b *Bucket) AddPhysicalPosition(key []byte, pp record.PhysicalPosition) (int, error) {
	sz := b.Size()
	if sz >= Capacity {
		return -1, ErrBucketFull
	}
	idx := int(sz)
	b.setKey(idx, key)
	b.setPhysicalPosition(idx, pp)
	b.setSize(sz + 1)
	b.notifyDirty()
	return idx, nil
}

// RemovePhysicalPosition removes the slot at index by swapping the last
// live slot into its place and shrinking Size, per the spec.md §9
// redesign flag (the source's no-op is not preserved here).
func (b *Bucket) RemovePhysicalPosition(index int) error {
	sz := int(b.Size())
	if index < 0 || index >= sz {
		return shardingerr.WithDetail(shardingerr.ErrSerialization, "remove index out of occupied range")
	}
	last := sz - 1
	if index != last {
		lastKey := b.Key(last)
		lastPP, err := b.PhysicalPosition(last)
		if err != nil {
			return err
		}
		b.setKey(index, lastKey)
		b.setPhysicalPosition(index, lastPP)
	}
	b.setKey(last, make([]byte, KeySize))
	b.setPhysicalPosition(last, record.PhysicalPosition{})
	b.setSize(uint8(last))
	b.notifyDirty()
	return nil
}

// FindByKey linearly scans the occupied slots for a matching key,
// returning its slot index.
func (b *Bucket) FindByKey(key []byte) (int, bool) {
	sz := int(b.Size())
	for i := 0; i < sz; i++ {
		if bytes.Equal(b.Key(i), key) {
			return i, true
		}
	}
	return -1, false
}

// IsDirty reports whether any byte range differs from what was last
// flushed via Serialize.
func (b *Bucket) IsDirty() bool {
	if b.overflowDirty || b.sizeDirty {
		return true
	}
	for i := 0; i < Capacity; i++ {
		if b.dirtyKey[i] || b.dirtyValue[i] {
			return true
		}
	}
	return false
}

// Serialize flushes every dirty byte range to w at baseOffset (the
// bucket's file position) and clears the dirty bitmap, per spec.md
// §4.2 and testable property 3 (idempotent on a clean bucket). w may
// be nil, in which case Serialize only clears the bitmap — the buffer
// itself is already authoritative, so a nil writer is how pure
// in-memory callers (tests, the round-trip property) "flush".
func (b *Bucket) Serialize(w io.WriterAt, baseOffset int64) (int, error) {
	n := 0
	if b.sizeDirty {
		if w != nil {
			if _, err := w.WriteAt(b.buf[0:1], baseOffset); err != nil {
				return n, err
			}
		}
		n++
		b.sizeDirty = false
	}
	for i := 0; i < Capacity; i++ {
		if b.dirtyKey[i] {
			off := keyOffset(i)
			if w != nil {
				if _, err := w.WriteAt(b.buf[off:off+KeySize], baseOffset+int64(off)); err != nil {
					return n, err
				}
			}
			n += KeySize
			b.dirtyKey[i] = false
		}
		if b.dirtyValue[i] {
			off := valueOffset(i)
			if w != nil {
				if _, err := w.WriteAt(b.buf[off:off+valueSize], baseOffset+int64(off)); err != nil {
					return n, err
				}
			}
			n += valueSize
			b.dirtyValue[i] = false
		}
	}
	if b.overflowDirty {
		if w != nil {
			if _, err := w.WriteAt(b.buf[OverflowPos:OverflowPos+8], baseOffset+int64(OverflowPos)); err != nil {
				return n, err
			}
		}
		n += 8
		b.overflowDirty = false
	}
	return n, nil
}
