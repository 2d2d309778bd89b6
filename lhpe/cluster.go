package lhpe

import (
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/orientcore/shardstore/bucket"
	"github.com/orientcore/shardstore/opresult"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/shardingerr"
)

// Mode distinguishes synchronous from fire-and-forget record writes.
// spec.md §4.3 names a "mode" parameter on every record operation; the
// wrapped storage and entity-mapping concerns that interpret it beyond
// "did this block" are external collaborators (spec.md §1), so Cluster
// only uses it to decide whether to flush synchronously: ModeSync
// drains the dirty-bucket queue into the journal before returning,
// ModeAsync leaves it for a later FlushDirty call.
type Mode int

const (
	ModeSync Mode = iota
	ModeAsync
)

// CreateCallback, ReadCallback, UpdateCallback, and DeleteCallback are
// the optional per-call hooks spec.md §4.3 names on create/read/update/
// delete_record. Per spec.md §5, a caller-provided callback is invoked
// only on local-served operations — the autosharded routing layer
// drops it entirely before forwarding to a remote peer, since the
// DHT Node RPC wrappers (§4.4) carry no callback parameter at all.
type (
	CreateCallback func(opresult.Result[record.PhysicalPosition], error)
	ReadCallback   func(opresult.Result[[]byte], error)
	UpdateCallback func(opresult.Result[record.Version], error)
	DeleteCallback func(opresult.Result[bool], error)
)

// Cluster is one Local Cluster (spec.md §4.3): a linear-hashing
// extensible bucket chain plus its append-only content log. It
// satisfies WritebackRegistry so every Bucket it owns reports back its
// dirty state for batched flushing, and persists that state through an
// append-only journal (journal.go) when opened against a data
// directory.
type Cluster struct {
	id   int16
	name string

	mu      sync.RWMutex
	dir     *directory
	segment [][]byte // append-only content log; index i == DataSegmentPos

	dirty   map[int64]*bucket.Bucket // pending writeback, keyed by file position
	cache   *fastcache.Cache         // decoded-content cache, grounded on disklayer.go's fastcache use
	journal *journal                 // nil for a purely in-memory cluster
}

// NewCluster creates an empty, purely in-memory cluster with the given
// id and name. Call Open to attach it to a data directory.
func NewCluster(id int16, name string) *Cluster {
	c := &Cluster{
		id:    id,
		name:  name,
		dirty: make(map[int64]*bucket.Bucket),
		cache: fastcache.New(4 * 1024 * 1024),
	}
	c.dir = newDirectory(id, c)
	return c
}

// Open replays path's journal (a no-op if it doesn't exist yet — a
// cold start) to rebuild this cluster's bucket chain and content log,
// then attaches path as the journal future mutations append to.
func (c *Cluster) Open(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := replayJournal(path, c.applyJournalRecord); err != nil {
		return shardingerr.WithDetail(shardingerr.ErrLocalStorage, "replaying cluster journal: "+err.Error())
	}
	j, err := openJournalForAppend(path)
	if err != nil {
		return shardingerr.WithDetail(shardingerr.ErrLocalStorage, "opening cluster journal: "+err.Error())
	}
	c.journal = j
	return nil
}

func (c *Cluster) applyJournalRecord(kind journalRecordKind, payload []byte) error {
	switch kind {
	case journalSegment:
		var rec journalSegmentRecord
		if err := decodeRecord(payload, &rec); err != nil {
			return err
		}
		c.segment = append(c.segment, rec.Content)
	case journalBucket:
		var rec journalBucketRecord
		if err := decodeRecord(payload, &rec); err != nil {
			return err
		}
		for int64(len(c.dir.buckets)) <= rec.Index {
			c.dir.buckets = append(c.dir.buckets, nil)
		}
		b := bucket.NewFromBuffer(append([]byte(nil), rec.Buf...), c.id, rec.Index, rec.IsOverflow)
		b.SetRegistry(c)
		c.dir.buckets[rec.Index] = b
	case journalMeta:
		var rec journalMetaRecord
		if err := decodeRecord(payload, &rec); err != nil {
			return err
		}
		c.dir.level = rec.Level
		c.dir.next = rec.Next
		c.dir.mainIndex = append([]int64(nil), rec.MainIndex...)
	}
	return nil
}

// Close flushes pending writes and the directory's bookkeeping fields
// to the journal, then closes the file handle. A cluster with no
// attached journal (pure in-memory use: tests, a storage opened
// without a data directory) does nothing.
func (c *Cluster) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.journal == nil {
		return nil
	}
	if _, err := c.flushDirtyLocked(); err != nil {
		return err
	}
	meta := journalMetaRecord{
		Level:     c.dir.level,
		Next:      c.dir.next,
		MainIndex: append([]int64(nil), c.dir.mainIndex...),
	}
	if err := c.journal.appendRecord(journalMeta, meta); err != nil {
		return shardingerr.WithDetail(shardingerr.ErrLocalStorage, "writing cluster journal metadata: "+err.Error())
	}
	if err := c.journal.close(); err != nil {
		return shardingerr.WithDetail(shardingerr.ErrLocalStorage, "closing cluster journal: "+err.Error())
	}
	c.journal = nil
	return nil
}

// RegisterDirty implements bucket.WritebackRegistry.
func (c *Cluster) RegisterDirty(b *bucket.Bucket) {
	c.dirty[b.Index()] = b
}

// ID returns the cluster's numeric identifier.
func (c *Cluster) ID() int16 { return c.id }

// Name returns the cluster's configured name.
func (c *Cluster) Name() string { return c.name }

// IsLHClustersUsed reports that this cluster is backed by the
// linear-hashing extensible bucket layout (spec.md §4.3).
func (c *Cluster) IsLHClustersUsed() bool { return true }

// Count returns the number of live records across every bucket chain.
// It is O(addresses) since buckets only expose a size byte, not a
// running total — acceptable for the administrative "counts" surface
// spec.md §4.3 names, not the record hot path.
func (c *Cluster) Count() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, addr := range c.dir.mainIndex {
		idx := addr
		for idx != bucket.NoOverflow {
			b := c.dir.buckets[idx]
			n += int64(b.Size())
			idx = b.OverflowBucket()
		}
	}
	return n
}

func cacheKey(rid record.RID) []byte {
	return encodeKey(rid.ClusterPosition)
}

// CreateRecord stores content under dataSegmentID, assigns a physical
// position, and indexes it under rid.ClusterPosition. Per spec.md
// §4.6, by the time this is called the autosharded layer has already
// assigned rid a concrete ClusterPosition. callback, if non-nil, is
// invoked with the final result before returning — this call is always
// local-served, so the invocation is unconditional here.
func (c *Cluster) CreateRecord(rid record.RID, content []byte, version record.Version, typ record.RecordType, mode Mode, callback CreateCallback) (result opresult.Result[record.PhysicalPosition], err error) {
	if callback != nil {
		defer func() { callback(result, err) }()
	}
	if rid.IsNew() {
		return opresult.Result[record.PhysicalPosition]{}, shardingerr.WithDetail(shardingerr.ErrLocalStorage, "cannot create a record with an unassigned cluster position")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := encodeKey(rid.ClusterPosition)
	h := rid.ClusterPosition.Unsigned()
	addr := c.dir.addrFor(h)
	if _, _, found := c.dir.find(addr, key); found {
		return opresult.Result[record.PhysicalPosition]{}, shardingerr.WithDetail(shardingerr.ErrRecordDuplicated, fmt.Sprintf("cluster position %d already exists", rid.ClusterPosition))
	}

	pos := int64(len(c.segment))
	c.segment = append(c.segment, append([]byte(nil), content...))
	if c.journal != nil {
		if err := c.journal.appendRecord(journalSegment, journalSegmentRecord{Content: content}); err != nil {
			return opresult.Result[record.PhysicalPosition]{}, shardingerr.WithDetail(shardingerr.ErrLocalStorage, "appending segment record: "+err.Error())
		}
	}
	pp := record.PhysicalPosition{
		DataSegmentID:  int32(c.id),
		DataSegmentPos: pos,
		RecordType:     typ,
		RecordVersion:  version,
	}
	c.dir.insert(c.id, c, addr, key, pp, true)
	c.cache.Set(cacheKey(rid), content)
	if mode == ModeSync {
		if _, err := c.flushDirtyLocked(); err != nil {
			return opresult.Result[record.PhysicalPosition]{}, err
		}
	}
	return opresult.Local(pp), nil
}

// ReadRecord returns the content previously stored at rid. Reads are
// always local-served, so callback, if non-nil, is always invoked.
func (c *Cluster) ReadRecord(rid record.RID, callback ReadCallback) (result opresult.Result[[]byte], err error) {
	if callback != nil {
		defer func() { callback(result, err) }()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if buf := c.cache.Get(nil, cacheKey(rid)); buf != nil {
		return opresult.Local(buf), nil
	}

	key := encodeKey(rid.ClusterPosition)
	addr := c.dir.addrFor(rid.ClusterPosition.Unsigned())
	b, slot, found := c.dir.find(addr, key)
	if !found {
		return opresult.Result[[]byte]{}, shardingerr.WithDetail(shardingerr.ErrLocalStorage, fmt.Sprintf("record %s not found", rid))
	}
	pp, err2 := b.PhysicalPosition(slot)
	if err2 != nil {
		return opresult.Result[[]byte]{}, err2
	}
	if pp.DataSegmentPos < 0 || int(pp.DataSegmentPos) >= len(c.segment) {
		return opresult.Result[[]byte]{}, shardingerr.WithDetail(shardingerr.ErrSerialization, "physical position points outside the content log")
	}
	content := c.segment[pp.DataSegmentPos]
	c.cache.Set(cacheKey(rid), content)
	return opresult.Local(append([]byte(nil), content...)), nil
}

// UpdateRecord overwrites the content and version stored at rid, which
// must already exist.
func (c *Cluster) UpdateRecord(rid record.RID, content []byte, version record.Version, typ record.RecordType, mode Mode, callback UpdateCallback) (result opresult.Result[record.Version], err error) {
	if callback != nil {
		defer func() { callback(result, err) }()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := encodeKey(rid.ClusterPosition)
	addr := c.dir.addrFor(rid.ClusterPosition.Unsigned())
	b, slot, found := c.dir.find(addr, key)
	if !found {
		return opresult.Result[record.Version]{}, shardingerr.WithDetail(shardingerr.ErrLocalStorage, fmt.Sprintf("record %s not found", rid))
	}
	pp, err2 := b.PhysicalPosition(slot)
	if err2 != nil {
		return opresult.Result[record.Version]{}, err2
	}
	pos := int64(len(c.segment))
	c.segment = append(c.segment, append([]byte(nil), content...))
	if c.journal != nil {
		if err := c.journal.appendRecord(journalSegment, journalSegmentRecord{Content: content}); err != nil {
			return opresult.Result[record.Version]{}, shardingerr.WithDetail(shardingerr.ErrLocalStorage, "appending segment record: "+err.Error())
		}
	}
	pp.DataSegmentPos = pos
	pp.RecordType = typ
	pp.RecordVersion = version

	if err := b.RemovePhysicalPosition(slot); err != nil {
		return opresult.Result[record.Version]{}, err
	}
	c.dir.insert(c.id, c, addr, key, pp, true)
	c.cache.Set(cacheKey(rid), content)
	if mode == ModeSync {
		if _, err := c.flushDirtyLocked(); err != nil {
			return opresult.Result[record.Version]{}, err
		}
	}
	return opresult.Local(version), nil
}

// DeleteRecord removes rid, returning whether it had existed.
func (c *Cluster) DeleteRecord(rid record.RID, version record.Version, mode Mode, callback DeleteCallback) (result opresult.Result[bool], err error) {
	if callback != nil {
		defer func() { callback(result, err) }()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := encodeKey(rid.ClusterPosition)
	addr := c.dir.addrFor(rid.ClusterPosition.Unsigned())
	b, slot, found := c.dir.find(addr, key)
	if !found {
		return opresult.Local(false), nil
	}
	if err := b.RemovePhysicalPosition(slot); err != nil {
		return opresult.Result[bool]{}, err
	}
	c.cache.Del(cacheKey(rid))
	if mode == ModeSync {
		if _, err := c.flushDirtyLocked(); err != nil {
			return opresult.Result[bool]{}, err
		}
	}
	return opresult.Local(true), nil
}

// FlushDirty serializes every bucket RegisterDirty has queued since the
// last flush and appends the result to the cluster's journal, clearing
// the queue — batching sequential writes the way spec.md §4.2's
// writeback list describes. Exported for ModeAsync writers and a
// periodic flush loop; ModeSync operations already call this inline.
func (c *Cluster) FlushDirty() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushDirtyLocked()
}

func (c *Cluster) flushDirtyLocked() (int, error) {
	total := 0
	for pos, b := range c.dirty {
		n, err := b.Serialize(nil, 0)
		if err != nil {
			return total, err
		}
		if c.journal != nil {
			rec := journalBucketRecord{
				Index:      pos,
				Buf:        append([]byte(nil), b.Buffer()...),
				IsOverflow: b.IsOverflowBucket(),
			}
			if err := c.journal.appendRecord(journalBucket, rec); err != nil {
				return total, shardingerr.WithDetail(shardingerr.ErrLocalStorage, "appending bucket record: "+err.Error())
			}
		}
		total += n
		delete(c.dirty, pos)
	}
	return total, nil
}
