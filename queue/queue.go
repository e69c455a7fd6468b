// Package queue is the public, typed façade over the segment-log storage
// engine: Push/Pop on byte payloads, with an optional transparent snappy
// compression layer and a generic helper for fixed-width element slices.
package queue

import (
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/registry"
	"github.com/ict-project/goqueue/internal/storage"
)

// procRegistry is process-wide: every Queue opened on the same directory in
// this process, directly or through the pool façade, shares one storage
// engine.
var procRegistry = registry.New()

// Queue is a handle to a persistent, file-backed FIFO queue directory.
type Queue struct {
	dir      string
	engine   *storage.Engine
	release  func() error
	compress bool

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// Open opens the queue directory at dir, which must already exist. Multiple
// Open calls on the same (or filesystem-equivalent) directory within one
// process share a single underlying storage engine.
func Open(dir string, opts ...Option) (*Queue, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	eng, release, err := procRegistry.Acquire(dir, func(d string) (registry.Engine, error) {
		return storage.Open(d, cfg.storageOpts...)
	})
	if err != nil {
		return nil, err
	}

	return &Queue{
		dir:      dir,
		engine:   eng.(*storage.Engine),
		release:  release,
		compress: cfg.compress,
	}, nil
}

// Close releases this handle's reference to the shared storage engine,
// closing it once no other handle in this process still holds it open.
func (q *Queue) Close() error {
	return q.release()
}

// Push durably appends payload to the tail of the write stream. A
// zero-length payload is legal.
func (q *Queue) Push(payload []byte) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	data := payload
	if q.compress {
		data = snappy.Encode(nil, payload)
	}
	if err := q.engine.WriteSize(len(data)); err != nil {
		return err
	}
	return q.engine.WriteContent(data)
}

// Pop removes and returns the oldest payload still in the queue. It returns
// ErrUnderflow if the queue is empty.
func (q *Queue) Pop() ([]byte, error) {
	q.readMu.Lock()
	defer q.readMu.Unlock()

	n, err := q.engine.ReadSize()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := q.engine.ReadContent(buf); err != nil {
		return nil, err
	}
	if !q.compress {
		return buf, nil
	}
	decoded, err := snappy.Decode(nil, buf)
	if err != nil {
		return nil, errors.Wrap(err, "queue: snappy decode")
	}
	return decoded, nil
}

// Size returns the number of payloads currently in the queue.
func (q *Queue) Size() (int64, error) {
	return q.engine.Size()
}

// Empty reports whether the queue currently holds no payloads.
func (q *Queue) Empty() (bool, error) {
	return q.engine.Empty()
}

// Clear deletes every segment, resetting the queue to empty.
func (q *Queue) Clear() error {
	return q.engine.Clear()
}
