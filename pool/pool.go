// Package pool implements the pool, priority, and nested-pool façades: thin
// dispatchers that select a sub-queue by identifier and delegate to the
// typed queue façade.
package pool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/pathenc"
	"github.com/ict-project/goqueue/internal/qerr"
	"github.com/ict-project/goqueue/queue"
)

const subdirSuffix = ".q"

// Key constrains the generic PushID/PopID convenience wrappers to string
// and the built-in integer types.
type Key interface {
	~string | ~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Pool maps a string identifier to its own queue directory, each living in
// an encoded-name subdirectory of dir.
type Pool struct {
	dir  string
	opts []queue.Option

	mu       sync.Mutex
	children map[string]*queue.Queue
}

// Open opens a pool rooted at dir, which must already exist.
func Open(dir string, opts ...queue.Option) (*Pool, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(qerr.ErrDomain, "pool: stat %s: %v", dir, err)
	}
	if !fi.IsDir() {
		return nil, errors.Wrapf(qerr.ErrDomain, "pool: %s is not a directory", dir)
	}
	return &Pool{dir: dir, opts: opts, children: make(map[string]*queue.Queue)}, nil
}

func (p *Pool) subPath(id string) string {
	return filepath.Join(p.dir, pathenc.Encode(id)+subdirSuffix)
}

// openLocked returns the sub-queue for id, creating its directory and
// opening it if necessary. Callers must hold p.mu.
func (p *Pool) openLocked(id string) (*queue.Queue, error) {
	if q, ok := p.children[id]; ok {
		return q, nil
	}
	path := p.subPath(id)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "pool: create sub-queue directory")
	}
	q, err := queue.Open(path, p.opts...)
	if err != nil {
		return nil, err
	}
	p.children[id] = q
	return q, nil
}

// Push pushes payload onto the sub-queue identified by id, creating it if
// it does not yet exist.
func (p *Pool) Push(id string, payload []byte) error {
	p.mu.Lock()
	q, err := p.openLocked(id)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return q.Push(payload)
}

// Pop pops the oldest payload from the sub-queue identified by id. It
// returns ErrUnderflow if that sub-queue does not exist. When the pop
// drains the sub-queue, its directory is removed.
func (p *Pool) Pop(id string) ([]byte, error) {
	p.mu.Lock()
	q, ok := p.children[id]
	if !ok {
		if _, err := os.Stat(p.subPath(id)); os.IsNotExist(err) {
			p.mu.Unlock()
			return nil, errors.Wrapf(qerr.ErrUnderflow, "pool: no sub-queue %q", id)
		}
		var err error
		q, err = p.openLocked(id)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	p.mu.Unlock()

	payload, err := q.Pop()
	if err != nil {
		return nil, err
	}

	if empty, eerr := q.Empty(); eerr == nil && empty {
		p.removeChild(id, q)
	}
	return payload, nil
}

func (p *Pool) removeChild(id string, q *queue.Queue) {
	p.mu.Lock()
	delete(p.children, id)
	p.mu.Unlock()
	q.Close()
	os.RemoveAll(p.subPath(id))
}

// IDs enumerates the identifiers with a live sub-queue directory, including
// ones created by other handles or processes sharing this pool directory.
func (p *Pool) IDs() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, errors.Wrap(err, "pool: read dir")
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), subdirSuffix) {
			continue
		}
		enc := strings.TrimSuffix(e.Name(), subdirSuffix)
		ids = append(ids, pathenc.Decode(enc))
	}
	return ids, nil
}

// Size returns the sum of every sub-queue's size.
func (p *Pool) Size() (int64, error) {
	ids, err := p.IDs()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		p.mu.Lock()
		q, err := p.openLocked(id)
		p.mu.Unlock()
		if err != nil {
			return 0, err
		}
		n, err := q.Size()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Clear deletes every sub-queue.
func (p *Pool) Clear() error {
	ids, err := p.IDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		p.mu.Lock()
		q, ok := p.children[id]
		delete(p.children, id)
		p.mu.Unlock()
		if ok {
			q.Close()
		}
		if err := os.RemoveAll(p.subPath(id)); err != nil {
			return errors.Wrap(err, "pool: remove sub-queue during clear")
		}
	}
	return nil
}

// Close closes every sub-queue handle currently open in memory. Sub-queue
// directories persist on disk.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for id, q := range p.children {
		if err := q.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.children, id)
	}
	return firstErr
}

// PushID is a convenience wrapper over Push for non-string identifiers.
func PushID[K Key](p *Pool, id K, payload []byte) error {
	return p.Push(fmt.Sprint(id), payload)
}

// PopID is a convenience wrapper over Pop for non-string identifiers.
func PopID[K Key](p *Pool, id K) ([]byte, error) {
	return p.Pop(fmt.Sprint(id))
}
