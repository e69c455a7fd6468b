// Package qerr defines the sentinel error values shared across the queue
// engine's internal packages and re-exported by the public queue and pool
// packages.
package qerr

import "errors"

var (
	// ErrUnderflow is returned by a pop on an empty queue, by a read stream
	// that has run out of segments without finding a payload, and by a pool
	// pop against a sub-queue that does not exist.
	ErrUnderflow = errors.New("queue: underflow")

	// ErrOverflow is returned when the segment pool would exceed its
	// configured maximum file count.
	ErrOverflow = errors.New("queue: overflow")

	// ErrDomain is returned for protocol-order violations: content without a
	// matching size, a size while one is already pending, or an operation
	// against a directory that does not exist.
	ErrDomain = errors.New("queue: domain error")

	// ErrInvalidArgument is returned for nil buffers, malformed identifiers,
	// and other constructor misuse.
	ErrInvalidArgument = errors.New("queue: invalid argument")

	// ErrOutOfRange is returned by segment.Pool.PathAt for an index outside
	// [0, Size()).
	ErrOutOfRange = errors.New("queue: index out of range")
)
