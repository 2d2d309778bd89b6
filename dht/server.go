package dht

import (
	"context"

	"github.com/orientcore/shardstore/ringid"
)

// ServerInstance is spec.md §4.5's façade: it owns the local Node and
// the Ring the local peer has joined, and exposes FindSuccessor as the
// single entry point the autosharded routing core calls through.
type ServerInstance struct {
	local Node
	ring  *Ring
}

// NewServerInstance wires a local node into a ring it has already
// joined (or is about to — callers typically call ring.Join(local)
// themselves before or after constructing the instance).
func NewServerInstance(local Node, ring *Ring) *ServerInstance {
	return &ServerInstance{local: local, ring: ring}
}

// LocalNode returns the peer this instance runs on behalf of.
func (s *ServerInstance) LocalNode() Node { return s.local }

// Ring returns the ring this instance resolves successors against.
func (s *ServerInstance) Ring() *Ring { return s.ring }

// FindSuccessor resolves a routing key to its owning peer.
func (s *ServerInstance) FindSuccessor(key ringid.NodeID) (Node, error) {
	return s.ring.FindSuccessor(key)
}

// FindSuccessorRemote is the RPC-facing counterpart used to answer a
// peer's FindSuccessor request without exposing the Node type across
// the wire — callers translate the returned id/address pair themselves.
func (s *ServerInstance) FindSuccessorRemote(ctx context.Context, key ringid.NodeID) (ringid.NodeID, string, error) {
	n, err := s.ring.FindSuccessor(key)
	if err != nil {
		return ringid.NodeID{}, "", err
	}
	return n.ID(), n.Address(), nil
}
