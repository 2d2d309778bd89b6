package dht

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/orientcore/shardstore/ringid"
	"github.com/orientcore/shardstore/shardingerr"
)

const successorCacheSize = 1024

// Ring is spec.md's glossary "Ring": a logical circular list of Nodes
// ordered by NodeID, resolving findSuccessor(key) by binary search over
// the sorted membership plus wraparound to the smallest member.
//
// No finger table is kept — spec.md §4.4 notes correctness depends only
// on the successor pointer, and at this core's scale a sorted slice
// with binary search is a faithful, simpler stand-in.
type Ring struct {
	mu      sync.RWMutex
	members []Node // sorted ascending by ID()

	successors *lru.ARCCache // memoizes key.Hex() -> Node, grounded on satoshi.go's lru.NewARC(inMemorySnapshots)
}

// NewRing creates an empty ring.
func NewRing() *Ring {
	cache, err := lru.NewARC(successorCacheSize)
	if err != nil {
		// NewARC only errors on a non-positive size, which
		// successorCacheSize never is.
		panic(err)
	}
	return &Ring{successors: cache}
}

// Join admits n into the ring, keeping the membership slice sorted.
func (r *Ring) Join(n Node) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.members), func(i int) bool {
		return r.members[i].ID().Cmp(n.ID()) >= 0
	})
	if i < len(r.members) && r.members[i].ID().Cmp(n.ID()) == 0 {
		r.members[i] = n // re-join with a fresh Node value (e.g. reconnect)
	} else {
		r.members = append(r.members, nil)
		copy(r.members[i+1:], r.members[i:])
		r.members[i] = n
	}
	r.successors.Purge()
}

// Leave removes the member with the given id, if present.
func (r *Ring) Leave(id ringid.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := sort.Search(len(r.members), func(i int) bool {
		return r.members[i].ID().Cmp(id) >= 0
	})
	if i < len(r.members) && r.members[i].ID().Cmp(id) == 0 {
		r.members = append(r.members[:i], r.members[i+1:]...)
	}
	r.successors.Purge()
}

// Members returns a snapshot of the current ring membership, sorted by
// NodeID.
func (r *Ring) Members() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Node, len(r.members))
	copy(out, r.members)
	return out
}

// FindSuccessor resolves key to the first member whose NodeID is >= key
// on the 160-bit circle, wrapping to the smallest member when key
// exceeds every member's id.
func (r *Ring) FindSuccessor(key ringid.NodeID) (Node, error) {
	if cached, ok := r.successors.Get(key.Hex()); ok {
		return cached.(Node), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.members) == 0 {
		return nil, shardingerr.WithDetail(shardingerr.ErrRingUnavailable, "ring has no members")
	}

	i := sort.Search(len(r.members), func(i int) bool {
		return r.members[i].ID().Cmp(key) >= 0
	})
	if i == len(r.members) {
		i = 0 // wrap around the circle
	}
	successor := r.members[i]
	r.successors.Add(key.Hex(), successor)
	return successor, nil
}
