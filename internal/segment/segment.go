// Package segment manages the ordered set of append-only segment files that
// make up one queue directory: creating a new write head, deleting the read
// tail, and reconstructing the contiguous run on open.
package segment

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/qerr"
)

// nameWidth is the number of hex digits in a segment filename.
const nameWidth = 16

const ext = ".dat"

// Pool owns the segment files of one queue directory. It is not safe for
// concurrent use; callers serialise access to it themselves (the storage
// engine does this under its own mutexes and the directory lock).
type Pool struct {
	dir         string
	maxFileSize int64
	maxFiles    int
	logger      log.Logger

	// numbers holds the contiguous run, descending: numbers[0] is the write
	// head, numbers[len-1] is the read tail.
	numbers []uint64
}

// Open scans dir for segment files and returns a Pool positioned over the
// contiguous run reachable by walking backwards from the largest segment
// number. Segments separated from that run by a gap are orphaned and
// ignored, preserving FIFO ordering.
func Open(dir string, maxFileSize int64, maxFiles int, logger log.Logger) (*Pool, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(qerr.ErrDomain, "segment: read dir %s: %v", dir, err)
	}

	found := make(map[uint64]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := parseName(e.Name())
		if !ok {
			continue
		}
		found[n] = true
	}

	p := &Pool{dir: dir, maxFileSize: maxFileSize, maxFiles: maxFiles, logger: logger}
	if len(found) == 0 {
		return p, nil
	}

	all := make([]uint64, 0, len(found))
	for n := range found {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] > all[j] })

	run := []uint64{all[0]}
	for i := 1; i < len(all); i++ {
		if all[i] == run[len(run)-1]-1 {
			run = append(run, all[i])
			continue
		}
		level.Warn(logger).Log("msg", "orphaned segment outside contiguous run", "segment", all[i])
		break
	}
	p.numbers = run
	return p, nil
}

func parseName(name string) (uint64, bool) {
	if len(name) != nameWidth+len(ext) || name[nameWidth:] != ext {
		return 0, false
	}
	n, err := strconv.ParseUint(name[:nameWidth], 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func fileName(n uint64) string {
	return fmt.Sprintf("%0*x%s", nameWidth, n, ext)
}

// pathFor returns the path for segment number n.
func (p *Pool) pathFor(n uint64) string {
	return filepath.Join(p.dir, fileName(n))
}

// Size returns the number of segments in the contiguous run.
func (p *Pool) Size() int { return len(p.numbers) }

// Empty reports whether the pool holds no segments.
func (p *Pool) Empty() bool { return len(p.numbers) == 0 }

// PathAt returns the filesystem path of the segment at index, where 0 is the
// write head and Size()-1 is the read tail.
func (p *Pool) PathAt(index int) (string, error) {
	if index < 0 || index >= len(p.numbers) {
		return "", errors.Wrapf(qerr.ErrOutOfRange, "segment: index %d out of range [0,%d)", index, len(p.numbers))
	}
	return p.pathFor(p.numbers[index]), nil
}

// NumberAt returns the segment number at index, under the same bounds as
// PathAt.
func (p *Pool) NumberAt(index int) (uint64, error) {
	if index < 0 || index >= len(p.numbers) {
		return 0, errors.Wrapf(qerr.ErrOutOfRange, "segment: index %d out of range [0,%d)", index, len(p.numbers))
	}
	return p.numbers[index], nil
}

// Numbers returns a copy of the segment numbers currently retained, head
// first.
func (p *Pool) Numbers() []uint64 {
	out := make([]uint64, len(p.numbers))
	copy(out, p.numbers)
	return out
}

// HeadPath returns the path of the current write head, or an error if the
// pool is empty.
func (p *Pool) HeadPath() (string, error) {
	return p.PathAt(0)
}

// TailPath returns the path of the current read tail, or an error if the
// pool is empty.
func (p *Pool) TailPath() (string, error) {
	return p.PathAt(len(p.numbers) - 1)
}

// HeadSize stats the current write head and returns its length in bytes.
func (p *Pool) HeadSize() (int64, error) {
	path, err := p.HeadPath()
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(err, "segment: stat head")
	}
	return fi.Size(), nil
}

// NeedsRotation reports whether the write head is missing or has grown past
// the configured maximum file size.
func (p *Pool) NeedsRotation() (bool, error) {
	if p.Empty() {
		return true, nil
	}
	size, err := p.HeadSize()
	if err != nil {
		return false, err
	}
	return size > p.maxFileSize, nil
}

// nextNumber returns the number to allocate for a new write head: the
// current head's number plus one, or 0 if the pool is empty. When the head
// is already at the maximum uint64 value, incrementing it would wrap around
// and collide with low numbers still on disk, so instead it scans forward
// from zero for the first number that is neither part of the current run
// nor an existing file left over from an earlier wrap.
func (p *Pool) nextNumber() (uint64, error) {
	if len(p.numbers) == 0 {
		return 0, nil
	}
	head := p.numbers[0]
	if head != math.MaxUint64 {
		return head + 1, nil
	}
	inUse := make(map[uint64]bool, len(p.numbers))
	for _, n := range p.numbers {
		inUse[n] = true
	}
	for n := uint64(0); n < math.MaxUint64; n++ {
		if inUse[n] {
			continue
		}
		if _, err := os.Stat(p.pathFor(n)); os.IsNotExist(err) {
			return n, nil
		}
	}
	return 0, errors.Wrap(qerr.ErrOverflow, "segment: no free segment number")
}

// PushFront allocates a new write head: number 0 if the pool is empty,
// otherwise the current head's number plus one. A pre-existing file under
// that name (left over from a prior run) is truncated to zero length.
// Returns ErrOverflow if the pool is already at maxFiles.
func (p *Pool) PushFront() (string, error) {
	if p.maxFiles > 0 && len(p.numbers) >= p.maxFiles {
		return "", errors.Wrapf(qerr.ErrOverflow, "segment: pool at max files (%d)", p.maxFiles)
	}
	next, err := p.nextNumber()
	if err != nil {
		return "", err
	}
	path := p.pathFor(next)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "segment: create head")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "segment: close new head")
	}
	p.numbers = append([]uint64{next}, p.numbers...)
	level.Debug(p.logger).Log("msg", "segment rotated", "segment", next)
	return path, nil
}

// PopBack deletes the read tail from disk and forgets it. Returns
// ErrUnderflow if the pool is empty.
func (p *Pool) PopBack() error {
	if p.Empty() {
		return errors.Wrap(qerr.ErrUnderflow, "segment: pop back on empty pool")
	}
	path, _ := p.TailPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "segment: remove tail")
	}
	p.numbers = p.numbers[:len(p.numbers)-1]
	return nil
}

// Clear deletes every segment from disk and empties the pool.
func (p *Pool) Clear() error {
	for _, n := range p.numbers {
		if err := os.Remove(p.pathFor(n)); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "segment: remove during clear")
		}
	}
	p.numbers = nil
	return nil
}

// Reload re-scans the directory, replacing the in-memory segment list. Used
// by the storage engine after detecting an external mutation via the
// directory lock's fingerprint.
func (p *Pool) Reload() error {
	fresh, err := Open(p.dir, p.maxFileSize, p.maxFiles, p.logger)
	if err != nil {
		return err
	}
	p.numbers = fresh.numbers
	return nil
}
