// Package shardingerr defines the typed error kinds the autosharded
// storage core surfaces, per spec.md §7. Each kind is a sentinel value
// so callers can test with errors.Is even after pkg/errors wrapping.
package shardingerr

import "github.com/pkg/errors"

// Sentinel error kinds, spec.md §7.
var (
	// ErrRecordDuplicated is raised by the create path when a remote
	// peer reports that the chosen cluster position already exists.
	// Recovered locally via the retry loop; surfaced unchanged after
	// the retry budget is exhausted.
	ErrRecordDuplicated = errors.New("record duplicated")

	// ErrDistributedUnavailable is raised by commit/rollback; terminal,
	// never retried.
	ErrDistributedUnavailable = errors.New("transactions not supported in distributed environment")

	// ErrRemoteRPC wraps any transport or remote-side fault from a peer
	// RPC. Surfaced to the caller unchanged; this layer does not retry
	// it automatically.
	ErrRemoteRPC = errors.New("remote rpc error")

	// ErrRingUnavailable is raised when a successor lookup has no ring
	// member to resolve against (an empty ring). Distinct from
	// ErrDistributedUnavailable: a caller may retry once the ring has
	// been joined, whereas a commit/rollback refusal never succeeds.
	ErrRingUnavailable = errors.New("no ring members available")

	// ErrLocalStorage wraps a fault surfaced by the wrapped local
	// storage, passed through unchanged.
	ErrLocalStorage = errors.New("local storage error")

	// ErrSerialization signals a Bucket byte-decode failure. Should be
	// unreachable given the fixed layout and a validated size byte;
	// raised only on corruption.
	ErrSerialization = errors.New("bucket serialization error")
)

// WithDetail wraps a sentinel kind with caller-supplied context while
// keeping errors.Is(err, kind) true.
func WithDetail(kind error, detail string) error {
	return errors.Wrap(kind, detail)
}

// IsDuplicated reports whether err is, or wraps, ErrRecordDuplicated.
func IsDuplicated(err error) bool { return errors.Is(err, ErrRecordDuplicated) }
