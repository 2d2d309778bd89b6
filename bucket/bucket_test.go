package bucket

import (
	"bytes"
	"testing"

	"github.com/orientcore/shardstore/record"
)

func key(n byte) []byte {
	k := make([]byte, KeySize)
	k[0] = n
	return k
}

func TestOverflowSentinel(t *testing.T) {
	b := New(1, 0, false)
	if got := b.OverflowBucket(); got != NoOverflow {
		t.Fatalf("fresh bucket overflow = %d, want %d", got, NoOverflow)
	}
	b.SetOverflowBucket(7)
	if got := b.OverflowBucket(); got != 7 {
		t.Fatalf("overflow after set = %d, want 7", got)
	}
	b.SetOverflowBucket(0)
	if got := b.OverflowBucket(); got != 0 {
		t.Fatalf("overflow after set(0) = %d, want 0", got)
	}
}

func TestAddPhysicalPositionFillsAndRejectsOverflow(t *testing.T) {
	b := New(1, 0, false)
	for i := 0; i < Capacity; i++ {
		pp := record.PhysicalPosition{DataSegmentID: int32(i), DataSegmentPos: int64(i) * 10, RecordType: record.RecordTypeDocument, RecordVersion: record.Version(i)}
		if _, err := b.AddPhysicalPosition(key(byte(i)), pp); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	if b.Size() != Capacity {
		t.Fatalf("size = %d, want %d", b.Size(), Capacity)
	}
	if _, err := b.AddPhysicalPosition(key(99), record.PhysicalPosition{}); err != ErrBucketFull {
		t.Fatalf("expected ErrBucketFull, got %v", err)
	}
}

func TestSerializeIdempotentOnCleanBucket(t *testing.T) {
	b := New(1, 0, false)
	b.AddPhysicalPosition(key(1), record.PhysicalPosition{DataSegmentID: 5})
	n1, err := b.Serialize(nil, 0)
	if err != nil || n1 == 0 {
		t.Fatalf("first serialize: n=%d err=%v", n1, err)
	}
	n2, err := b.Serialize(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n2 != 0 {
		t.Fatalf("second serialize on clean bucket wrote %d bytes, want 0", n2)
	}
	if b.IsDirty() {
		t.Fatal("bucket still dirty after serialize")
	}
}

func TestRoundTripThroughSerializeReloadDeserialize(t *testing.T) {
	backing := make([]byte, SizeInBytes)
	w := &sliceWriterAt{buf: backing}

	b := New(2, 3, false)
	var want []record.PhysicalPosition
	for i := 0; i < 10; i++ {
		pp := record.PhysicalPosition{DataSegmentID: int32(i + 1), DataSegmentPos: int64(i * 1000), RecordType: record.RecordTypeDocument, RecordVersion: record.Version(i)}
		want = append(want, pp)
		if _, err := b.AddPhysicalPosition(key(byte(i)), pp); err != nil {
			t.Fatal(err)
		}
	}
	b.SetOverflowBucket(42)
	if _, err := b.Serialize(w, 0); err != nil {
		t.Fatal(err)
	}

	reloaded := NewFromBuffer(append([]byte(nil), backing...), 2, 3, false)
	if reloaded.Size() != 10 {
		t.Fatalf("reloaded size = %d, want 10", reloaded.Size())
	}
	if got := reloaded.OverflowBucket(); got != 42 {
		t.Fatalf("reloaded overflow = %d, want 42", got)
	}
	for i, w := range want {
		got, err := reloaded.PhysicalPosition(i)
		if err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("slot %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestRemovePhysicalPositionSwapsLastSlot(t *testing.T) {
	b := New(1, 0, false)
	pps := make([]record.PhysicalPosition, 5)
	for i := 0; i < 5; i++ {
		pps[i] = record.PhysicalPosition{DataSegmentID: int32(i)}
		b.AddPhysicalPosition(key(byte(i)), pps[i])
	}
	if err := b.RemovePhysicalPosition(1); err != nil {
		t.Fatal(err)
	}
	if b.Size() != 4 {
		t.Fatalf("size after remove = %d, want 4", b.Size())
	}
	got, _ := b.PhysicalPosition(1)
	if got != pps[4] {
		t.Fatalf("slot 1 after remove = %+v, want last live slot %+v", got, pps[4])
	}
	if !bytes.Equal(b.Key(1), key(4)) {
		t.Fatal("key at slot 1 was not swapped from the last live slot")
	}
}

type sliceWriterAt struct{ buf []byte }

func (s *sliceWriterAt) WriteAt(p []byte, off int64) (int, error) {
	copy(s.buf[off:], p)
	return len(p), nil
}
