// Package registry implements the process-wide per-path singleton that lets
// two handles opened on the same queue directory — whether by identical
// path or by two paths naming the same filesystem object — share one
// underlying storage engine.
package registry

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Engine is the subset of the storage engine's lifecycle the registry needs
// to manage: construction happens through Opener, teardown through Close.
type Engine interface {
	Close() error
}

// Opener constructs the engine for a freshly canonicalised directory.
// Concurrent Acquire calls for the same canonical path share one Opener
// call via singleflight; calls through different alias paths are not
// collapsed this way.
type Opener func(dir string) (Engine, error)

type entry struct {
	engine Engine
	info   os.FileInfo
	refs   int
}

// Registry holds one live engine per distinct queue directory.
type Registry struct {
	mu     sync.Mutex
	sf     singleflight.Group
	byPath map[string]*entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byPath: make(map[string]*entry)}
}

// Acquire returns the shared engine for dir, constructing it via open if no
// handle currently holds one open on dir or on a path that designates the
// same filesystem object. The returned release func must be called exactly
// once when the caller is done with the engine; the underlying engine is
// closed when the last reference is released.
func (r *Registry) Acquire(dir string, open Opener) (Engine, func() error, error) {
	canon, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "registry: abs path %s", dir)
	}
	info, err := os.Stat(canon)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "registry: stat %s", canon)
	}

	if e, key := r.findAndBumpLocked(canon, info); e != nil {
		return e.engine, r.releaseFunc(key, e), nil
	}

	v, err, _ := r.sf.Do(canon, func() (interface{}, error) {
		if e, key := r.findAndBumpLocked(canon, info); e != nil {
			return aliasResult{key: key, entry: e}, nil
		}

		eng, err := open(canon)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		e := &entry{engine: eng, info: info, refs: 1}
		r.byPath[canon] = e
		r.mu.Unlock()
		return aliasResult{key: canon, entry: e}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	res := v.(aliasResult)
	return res.entry.engine, r.releaseFunc(res.key, res.entry), nil
}

type aliasResult struct {
	key   string
	entry *entry
}

// findAndBumpLocked looks for an existing entry under canon or under an
// alias path naming the same filesystem object, bumping its refcount if
// found, and returns the entry along with the map key it is stored under.
func (r *Registry) findAndBumpLocked(canon string, info os.FileInfo) (*entry, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byPath[canon]; ok {
		e.refs++
		return e, canon
	}
	for k, e := range r.byPath {
		if os.SameFile(e.info, info) {
			e.refs++
			return e, k
		}
	}
	return nil, ""
}

// releaseFunc returns a closure that decrements the refcount of e (stored
// under key) and closes the engine once the count reaches zero.
func (r *Registry) releaseFunc(key string, e *entry) func() error {
	return func() error {
		r.mu.Lock()
		e.refs--
		if e.refs > 0 {
			r.mu.Unlock()
			return nil
		}
		delete(r.byPath, key)
		r.mu.Unlock()
		return e.engine.Close()
	}
}
