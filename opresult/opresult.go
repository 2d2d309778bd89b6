// Package opresult defines the OperationResult envelope spec.md §4.3/
// §4.6 returns from every record operation: a value plus a flag noting
// whether it was produced by a remote peer.
package opresult

// Result wraps a value with the "did this come from a remote node"
// flag spec.md calls out as the observable distinguishing feature of a
// forwarded operation.
type Result[T any] struct {
	Value      T
	FromRemote bool
}

// Local wraps v as a locally produced result.
func Local[T any](v T) Result[T] { return Result[T]{Value: v} }

// Remote wraps v as a result produced by a remote peer.
func Remote[T any](v T) Result[T] { return Result[T]{Value: v, FromRemote: true} }
