// Package lhpe implements the Local Cluster contract of spec.md §4.3: a
// linear-hashing extensible bucket chain ("LHPE" — local hash paginated
// extensible storage) that delegates slot I/O to the bucket package.
package lhpe

import (
	"encoding/binary"

	"github.com/orientcore/shardstore/bucket"
	"github.com/orientcore/shardstore/record"
)

// directory is the linear-hashing address table for one cluster: which
// file position holds the main bucket responsible for each hash
// address, plus the level/next split pointer that make address
// resolution dynamic as the cluster grows.
type directory struct {
	buckets   []*bucket.Bucket
	mainIndex []int64 // hash address -> file position in buckets
	level     uint
	next      int
}

func newDirectory(clusterID int16, registry bucket.WritebackRegistry) *directory {
	b := bucket.New(clusterID, 0, false)
	b.SetRegistry(registry)
	return &directory{
		buckets:   []*bucket.Bucket{b},
		mainIndex: []int64{0},
	}
}

func encodeKey(pos record.ClusterPosition) []byte {
	key := make([]byte, bucket.KeySize)
	binary.BigEndian.PutUint64(key[:8], pos.Unsigned())
	return key
}

func decodeKeyRoutingValue(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[:8])
}

// addrFor resolves a routing key to the current hash address, using the
// standard linear-hashing address function: hash with level+1 bits,
// folding back to level bits if the higher address hasn't been created
// by a split yet.
func (d *directory) addrFor(h uint64) int {
	highMask := uint64(1)<<(d.level+1) - 1
	addr := h & highMask
	if int(addr) >= len(d.mainIndex) {
		lowMask := uint64(1)<<d.level - 1
		addr = h & lowMask
	}
	return int(addr)
}

func (d *directory) newBucket(clusterID int16, isOverflow bool, registry bucket.WritebackRegistry) *bucket.Bucket {
	b := bucket.New(clusterID, int64(len(d.buckets)), isOverflow)
	b.SetRegistry(registry)
	d.buckets = append(d.buckets, b)
	return b
}

// chainHead returns the main bucket for a hash address.
func (d *directory) chainHead(addr int) *bucket.Bucket {
	return d.buckets[d.mainIndex[addr]]
}

// insert walks the overflow chain starting at head, inserting into the
// last bucket, allocating a new overflow bucket if every bucket in the
// chain is full. When allowSplit is true and the insert caused an
// overflow allocation, the directory performs one linear-hash split.
func (d *directory) insert(clusterID int16, registry bucket.WritebackRegistry, addr int, key []byte, pp record.PhysicalPosition, allowSplit bool) {
	head := d.chainHead(addr)
	cur := head
	for {
		if _, err := cur.AddPhysicalPosition(key, pp); err == nil {
			return
		}
		next := cur.OverflowBucket()
		if next == bucket.NoOverflow {
			overflow := d.newBucket(clusterID, true, registry)
			cur.SetOverflowBucket(overflow.Index())
			overflow.AddPhysicalPosition(key, pp)
			if allowSplit {
				d.split(clusterID, registry)
			}
			return
		}
		cur = d.buckets[next]
	}
}

// split redistributes the bucket chain at the current split pointer
// across itself and a freshly appended address, then advances the
// pointer (doubling the addressable range once a full pass completes).
func (d *directory) split(clusterID int16, registry bucket.WritebackRegistry) {
	splitAddr := d.next

	type entry struct {
		key []byte
		pp  record.PhysicalPosition
	}
	var entries []entry
	idx := d.mainIndex[splitAddr]
	for idx != bucket.NoOverflow {
		b := d.buckets[idx]
		sz := int(b.Size())
		for i := 0; i < sz; i++ {
			pp, _ := b.PhysicalPosition(i)
			entries = append(entries, entry{key: b.Key(i), pp: pp})
		}
		idx = b.OverflowBucket()
	}

	// Reset the split address's chain to a fresh, empty main bucket at
	// the same file position (orphaning its old overflow chain; a
	// compacting cluster would reclaim those slots, which this
	// implementation does not attempt).
	freshPos := d.mainIndex[splitAddr]
	fresh := bucket.New(clusterID, freshPos, false)
	fresh.SetRegistry(registry)
	d.buckets[freshPos] = fresh

	newBucket := d.newBucket(clusterID, false, registry)
	d.mainIndex = append(d.mainIndex, newBucket.Index())

	for _, e := range entries {
		h := decodeKeyRoutingValue(e.key)
		addr := d.addrFor(h)
		d.insert(clusterID, registry, addr, e.key, e.pp, false)
	}

	d.next++
	if d.next >= (1 << d.level) {
		d.level++
		d.next = 0
	}
}

// find walks the chain at addr looking for key, returning the owning
// bucket and slot index.
func (d *directory) find(addr int, key []byte) (*bucket.Bucket, int, bool) {
	idx := d.mainIndex[addr]
	for idx != bucket.NoOverflow {
		b := d.buckets[idx]
		if slot, ok := b.FindByKey(key); ok {
			return b, slot, true
		}
		idx = b.OverflowBucket()
	}
	return nil, -1, false
}
