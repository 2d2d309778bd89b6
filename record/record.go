// Package record defines the record identity types that flow through the
// autosharded storage core: the record id pair, the intra-cluster
// position used as the DHT routing key, and the on-disk physical locator
// a bucket slot stores.
package record

import "fmt"

// ClusterPosition is a signed 64-bit intra-cluster record index. In
// autosharded mode it doubles as the DHT routing key: FindSuccessor of
// its unsigned reinterpretation yields the owning peer (spec.md §3, §6).
type ClusterPosition int64

// Unsigned reinterprets the position as an unsigned 64-bit routing key,
// per spec.md §6 ("clusterPosition interpreted as unsigned 64-bit for
// successor comparison").
func (p ClusterPosition) Unsigned() uint64 { return uint64(p) }

// Undefined is the sentinel clusterPosition carried by a freshly
// allocated RID before Create assigns it a real position.
const Undefined ClusterPosition = -1

// RID is a record identifier: a cluster id paired with an intra-cluster
// position. The position is generated once at create and is stable for
// the record's lifetime (spec.md §3, lifecycle).
type RID struct {
	ClusterID       int16
	ClusterPosition ClusterPosition
}

// NewRID builds an RID with an as-yet-unassigned position.
func NewRID(clusterID int16) RID {
	return RID{ClusterID: clusterID, ClusterPosition: Undefined}
}

// IsNew reports whether the RID has no assigned position yet.
func (r RID) IsNew() bool { return r.ClusterPosition == Undefined }

func (r RID) String() string {
	return fmt.Sprintf("#%d:%d", r.ClusterID, r.ClusterPosition)
}

// RecordType is the single-byte record type tag stored alongside a
// physical position (spec.md §3).
type RecordType byte

const (
	RecordTypeDocument RecordType = 'd'
	RecordTypeFlat     RecordType = 'b'
)

// Version is the opaque per-record version counter. spec.md leaves its
// serialized width to "version-serializer size"; this implementation
// fixes it at 4 bytes (see DESIGN.md, Open Questions).
type Version uint32

// VersionSize is the fixed serialized width of Version, in bytes.
const VersionSize = 4

// PhysicalPosition is the on-disk locator stored in a bucket value slot
// (spec.md §3): which data segment, what offset within it, the record's
// type tag, and its version.
type PhysicalPosition struct {
	DataSegmentID  int32
	DataSegmentPos int64
	RecordType     RecordType
	RecordVersion  Version
}

// Size is the fixed serialized width of a PhysicalPosition value slot:
// 4 (segment id) + 8 (segment pos) + 1 (type) + VersionSize.
const Size = 4 + 8 + 1 + VersionSize

func (p PhysicalPosition) String() string {
	return fmt.Sprintf("seg=%d off=%d type=%c v=%d", p.DataSegmentID, p.DataSegmentPos, p.RecordType, p.RecordVersion)
}
