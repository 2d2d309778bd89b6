// Package ringid implements the 160-bit node identifier that places a
// peer on the DHT's circular keyspace.
package ringid

import (
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/ripemd160"
)

// Size is the width of a NodeID in bytes (160 bits).
const Size = 20

// NodeID is a 160-bit identifier on the ring. Keys wrap modulo 2^160.
type NodeID [Size]byte

// FromAddress derives a NodeID from a peer's advertised network address,
// the same scheme Chord uses to place a node from a SHA-1 of its address —
// here at the same 160-bit width via RIPEMD-160.
func FromAddress(addr string) NodeID {
	h := ripemd160.New()
	h.Write([]byte(addr))
	var id NodeID
	copy(id[:], h.Sum(nil))
	return id
}

// FromBytes builds a NodeID from an arbitrary byte slice, truncating or
// zero-padding to Size.
func FromBytes(b []byte) NodeID {
	var id NodeID
	copy(id[:], b)
	return id
}

// Bytes returns the big-endian byte representation.
func (id NodeID) Bytes() []byte {
	return id[:]
}

// Big returns the NodeID as an unsigned big.Int for ring arithmetic.
func (id NodeID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

// Hex returns the lowercase hex encoding of the id.
func (id NodeID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id NodeID) String() string { return id.Hex() }

// Cmp compares two ids as unsigned 160-bit integers: -1, 0, +1.
func (id NodeID) Cmp(other NodeID) int {
	for i := 0; i < Size; i++ {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports whether id < other on the unsigned integer line (not the
// ring — callers doing successor math should compare via Cmp directly).
func (id NodeID) Less(other NodeID) bool {
	return id.Cmp(other) < 0
}

// FromUint64 places a 64-bit routing key (e.g. a cluster position
// reinterpreted as unsigned per spec.md §6) into the low 64 bits of a
// NodeID-width value, for comparison against ring members.
func FromUint64(key uint64) NodeID {
	var id NodeID
	for i := 0; i < 8; i++ {
		id[Size-1-i] = byte(key >> (8 * i))
	}
	return id
}
