// Package loopback implements dht.Node in-process, wrapping a local
// record storage directly instead of dialing a remote peer. It backs
// the local ring member and lets tests and the demo CLI simulate a
// multi-node ring inside one binary.
package loopback

import (
	"context"

	"github.com/orientcore/shardstore/lhpe"
	"github.com/orientcore/shardstore/opresult"
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
)

// LocalStorage is the subset of lhpe.Storage's surface a loopback Node
// needs to service record RPCs locally.
type LocalStorage interface {
	CreateRecord(rid record.RID, content []byte, version record.Version, typ record.RecordType, mode lhpe.Mode, callback lhpe.CreateCallback) (opresult.Result[record.PhysicalPosition], error)
	ReadRecord(rid record.RID, callback lhpe.ReadCallback) (opresult.Result[[]byte], error)
	UpdateRecord(rid record.RID, content []byte, version record.Version, typ record.RecordType, mode lhpe.Mode, callback lhpe.UpdateCallback) (opresult.Result[record.Version], error)
	DeleteRecord(rid record.RID, version record.Version, mode lhpe.Mode, callback lhpe.DeleteCallback) (opresult.Result[bool], error)
}

// SuccessorResolver lets a loopback Node answer FindSuccessor requests
// against its own ring view, satisfying the Node interface's
// peer-facing lookup without importing package dht (which itself
// depends on Node, so a direct import would cycle).
type SuccessorResolver interface {
	FindSuccessorRemote(ctx context.Context, key ringid.NodeID) (id ringid.NodeID, address string, err error)
}

// Node is an in-process dht.Node: every record RPC is serviced by
// calling straight into storage, with no network hop.
type Node struct {
	id       ringid.NodeID
	address  string
	storage  LocalStorage
	resolver SuccessorResolver
}

// New builds a loopback node identified by id/address, servicing
// record RPCs against storage and FindSuccessor requests via resolver.
func New(id ringid.NodeID, address string, storage LocalStorage, resolver SuccessorResolver) *Node {
	return &Node{id: id, address: address, storage: storage, resolver: resolver}
}

func (n *Node) ID() ringid.NodeID { return n.id }
func (n *Node) Address() string   { return n.address }
func (n *Node) IsLocal() bool     { return true }

func (n *Node) CreateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.PhysicalPosition], error) {
	return n.storage.CreateRecord(rid, content, version, typ, lhpe.ModeSync, nil)
}

func (n *Node) ReadRecord(ctx context.Context, rid record.RID) (opresult.Result[[]byte], error) {
	return n.storage.ReadRecord(rid, nil)
}

func (n *Node) UpdateRecord(ctx context.Context, rid record.RID, content []byte, version record.Version, typ record.RecordType) (opresult.Result[record.Version], error) {
	return n.storage.UpdateRecord(rid, content, version, typ, lhpe.ModeSync, nil)
}

func (n *Node) DeleteRecord(ctx context.Context, rid record.RID, version record.Version, forwarded bool) (opresult.Result[bool], error) {
	return n.storage.DeleteRecord(rid, version, lhpe.ModeSync, nil)
}

func (n *Node) FindSuccessor(ctx context.Context, key ringid.NodeID) (ringid.NodeID, string, error) {
	return n.resolver.FindSuccessorRemote(ctx, key)
}
