package rpcgob

import (
	"github.com/orientcore/shardstore/record"
	"github.com/orientcore/shardstore/ringid"
)

// Every request/response pair below is gob-encoded directly; there is
// no .proto schema, so field order and naming are this package's own
// wire contract.

type CreateRequest struct {
	RID     record.RID
	Content []byte
	Version record.Version
	Type    record.RecordType
}

type CreateResponse struct {
	PhysicalPosition record.PhysicalPosition
	FromRemote       bool
}

type ReadRequest struct {
	RID record.RID
}

type ReadResponse struct {
	Content    []byte
	FromRemote bool
}

type UpdateRequest struct {
	RID     record.RID
	Content []byte
	Version record.Version
	Type    record.RecordType
}

type UpdateResponse struct {
	Version    record.Version
	FromRemote bool
}

// DeleteRequest carries forwarded explicitly (SPEC_FULL.md §4.6):
// spec.md's thread-local "currently forwarding" flag becomes a field
// on the wire request instead of ambient goroutine-local state.
type DeleteRequest struct {
	RID       record.RID
	Version   record.Version
	Forwarded bool
}

type DeleteResponse struct {
	Existed    bool
	FromRemote bool
}

type FindSuccessorRequest struct {
	Key ringid.NodeID
}

type FindSuccessorResponse struct {
	ID      ringid.NodeID
	Address string
}

// RPCError is a gob-safe error envelope. No request or response in
// this package carries it: a server-side fault reaches the client as
// the grpc status message, which Client's translateErr maps back onto
// the shardingerr sentinel kinds by message text.
type RPCError struct {
	Message string
}

func (e *RPCError) Error() string { return e.Message }
