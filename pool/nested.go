package pool

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/pathenc"
	"github.com/ict-project/goqueue/queue"
)

// NestedPool is a pool of pools, letting two-level hierarchies (for
// example tenant then priority) compose without a dedicated façade type.
type NestedPool struct {
	dir  string
	opts []queue.Option

	mu       sync.Mutex
	children map[string]*Pool
}

// OpenNested opens a nested pool rooted at dir, which must already exist.
func OpenNested(dir string, opts ...queue.Option) (*NestedPool, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "pool: stat %s", dir)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("pool: %s is not a directory", dir)
	}
	return &NestedPool{dir: dir, opts: opts, children: make(map[string]*Pool)}, nil
}

func (n *NestedPool) childPool(outer string) (*Pool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.children[outer]; ok {
		return p, nil
	}
	path := filepath.Join(n.dir, pathenc.Encode(outer)+subdirSuffix)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "pool: create nested pool directory")
	}
	p, err := Open(path, n.opts...)
	if err != nil {
		return nil, err
	}
	n.children[outer] = p
	return p, nil
}

// Push enqueues payload onto the sub-pool outer's sub-queue inner.
func (n *NestedPool) Push(outer, inner string, payload []byte) error {
	p, err := n.childPool(outer)
	if err != nil {
		return err
	}
	return p.Push(inner, payload)
}

// Pop pops from the sub-pool outer's sub-queue inner.
func (n *NestedPool) Pop(outer, inner string) ([]byte, error) {
	p, err := n.childPool(outer)
	if err != nil {
		return nil, err
	}
	return p.Pop(inner)
}

// Close closes every sub-pool's open handles.
func (n *NestedPool) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var firstErr error
	for outer, p := range n.children {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(n.children, outer)
	}
	return firstErr
}
