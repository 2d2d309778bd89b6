// Package dht implements the peer abstraction spec.md §4.4 names: a
// Node interface abstracting RPC to a ring member, a Ring tracking
// membership and resolving successors, and a ServerInstance façade the
// autosharded routing core calls through.
package dht

import (
	"context"

	"github.com/orientcore/shardstore/opresult"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
)

// Node is the abstract peer spec.md §4.4 routes record operations
// through. Two concrete implementations exist: transport/loopback (an
// in-process peer wrapping a local lhpe-style record storage) and
// transport/rpcgob (a grpc client dialing a remote peer).
type Node interface {
	ID() ringid.NodeID
	Address() string
	IsLocal() bool

	CreateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.PhysicalPosition], error)
	ReadRecord(ctx context.Context, rid record.RID) (opresult.Result[[]byte], error)
	UpdateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.Version], error)
	DeleteRecord(ctx context.Context, rid record.RID, version record.Version, forwarded bool) (opresult.Result[bool], error)

	// FindSuccessor lets a remote peer ask this node to resolve a
	// routing key against its own ring view, for the grpc transport's
	// FindSuccessor RPC.
	FindSuccessor(ctx context.Context, key ringid.NodeID) (ringid.NodeID, string, error)
}
