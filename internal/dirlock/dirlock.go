// Package dirlock implements the cross-process advisory lock that
// coordinates multiple handles on the same queue directory, plus the small
// fingerprint header used to detect external mutation of the segment set.
package dirlock

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// sentinelName is the file the lock and fingerprint are kept in.
const sentinelName = "dir.lock"

// fingerprintSize is the on-disk size of the Count/Hash header.
const fingerprintSize = 16

// Fingerprint captures the current segment set of a queue directory: how
// many segments exist and an order-independent hash of their identities.
type Fingerprint struct {
	Count uint64
	Hash  uint64
}

// unknown is the sentinel value a freshly-initialised (or empty)
// dir.lock file reads as; guaranteed to differ from any real fingerprint,
// forcing a reload on first acquisition.
var unknown = Fingerprint{Count: ^uint64(0), Hash: ^uint64(0)}

// ComputeFingerprint derives the fingerprint for a segment number set. The
// hash is an order-independent XOR of per-segment FNV64 hashes so any two
// holders who agree on the final set agree on the fingerprint regardless of
// the order segments were added or removed in.
func ComputeFingerprint(numbers []uint64) Fingerprint {
	var hash uint64
	for _, n := range numbers {
		h := fnv.New64a()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], n)
		_, _ = h.Write(buf[:])
		hash ^= h.Sum64()
	}
	return Fingerprint{Count: uint64(len(numbers)), Hash: hash}
}

// Lock is a scoped advisory lock over one queue directory's sentinel file.
//
// gofrs/flock associates the OS-level lock with a single open file
// description, so two goroutines in this process calling Lock()/Unlock() on
// the same instance would not actually exclude each other at the syscall
// level. procMu supplies that missing intra-process exclusion; the flock
// call underneath still provides the cross-process guarantee.
type Lock struct {
	path   string
	fl     *flock.Flock
	procMu sync.Mutex
}

// Open returns a Lock bound to dir's sentinel file. It does not acquire the
// lock; call Lock or With for that.
func Open(dir string) *Lock {
	path := filepath.Join(dir, sentinelName)
	return &Lock{path: path, fl: flock.New(path)}
}

// Lock blocks until the advisory lock is acquired.
func (l *Lock) Lock() error {
	l.procMu.Lock()
	if err := l.fl.Lock(); err != nil {
		l.procMu.Unlock()
		return errors.Wrapf(err, "dirlock: lock %s", l.path)
	}
	return nil
}

// Unlock releases the advisory lock.
func (l *Lock) Unlock() error {
	defer l.procMu.Unlock()
	if err := l.fl.Unlock(); err != nil {
		return errors.Wrapf(err, "dirlock: unlock %s", l.path)
	}
	return nil
}

// With acquires the lock, runs fn, and releases the lock on every exit path
// including a panic unwinding through fn.
func (l *Lock) With(fn func() error) error {
	if err := l.Lock(); err != nil {
		return err
	}
	defer l.Unlock()
	return fn()
}

// ReadFingerprint reads the fingerprint header from the sentinel file. An
// empty or missing file reads as the unknown sentinel fingerprint. Must be
// called while the lock is held.
func (l *Lock) ReadFingerprint() (Fingerprint, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return unknown, nil
		}
		return Fingerprint{}, errors.Wrap(err, "dirlock: open sentinel")
	}
	defer f.Close()

	var buf [fingerprintSize]byte
	if _, err := io.ReadFull(f, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return unknown, nil
		}
		return Fingerprint{}, errors.Wrap(err, "dirlock: read sentinel")
	}
	return Fingerprint{
		Count: binary.LittleEndian.Uint64(buf[0:8]),
		Hash:  binary.LittleEndian.Uint64(buf[8:16]),
	}, nil
}

// WriteFingerprint writes fp to the sentinel file's header. Must be called
// while the lock is held.
func (l *Lock) WriteFingerprint(fp Fingerprint) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "dirlock: open sentinel for write")
	}
	defer f.Close()

	var buf [fingerprintSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], fp.Count)
	binary.LittleEndian.PutUint64(buf[8:16], fp.Hash)
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return errors.Wrap(err, "dirlock: write sentinel")
	}
	return nil
}
