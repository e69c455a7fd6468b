package pool

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/qerr"
	"github.com/ict-project/goqueue/queue"
)

// Priority is a Pool keyed by an 8-bit priority, always drained
// highest-first; within one priority level, FIFO order holds.
type Priority struct {
	pool *Pool
}

// OpenPriority opens a priority pool rooted at dir, which must already
// exist.
func OpenPriority(dir string, opts ...queue.Option) (*Priority, error) {
	p, err := Open(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &Priority{pool: p}, nil
}

// Push enqueues payload at the given priority level.
func (pr *Priority) Push(priority uint8, payload []byte) error {
	return pr.pool.Push(strconv.Itoa(int(priority)), payload)
}

// Pop removes and returns the oldest payload at the highest non-empty
// priority level. It returns ErrUnderflow if every level is empty.
func (pr *Priority) Pop() ([]byte, error) {
	ids, err := pr.pool.IDs()
	if err != nil {
		return nil, err
	}
	var (
		best  uint8
		found bool
	)
	for _, s := range ids {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > 255 {
			continue
		}
		v := uint8(n)
		if !found || v > best {
			best, found = v, true
		}
	}
	if !found {
		return nil, errors.Wrap(qerr.ErrUnderflow, "pool: priority pop on empty pool")
	}
	return pr.pool.Pop(strconv.Itoa(int(best)))
}

// Size returns the sum of every priority level's size.
func (pr *Priority) Size() (int64, error) { return pr.pool.Size() }

// Clear deletes every priority level.
func (pr *Priority) Clear() error { return pr.pool.Clear() }

// Close closes every priority level's open handle.
func (pr *Priority) Close() error { return pr.pool.Close() }
