// Package storage implements the segment-log storage engine: the two-phase
// write/read protocol, segment rotation, cold-start recovery, and the
// refresh cycle that keeps a handle consistent with external mutation of
// its queue directory.
package storage

import (
	"io"
	"os"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/ict-project/goqueue/internal/dirlock"
	"github.com/ict-project/goqueue/internal/qerr"
	"github.com/ict-project/goqueue/internal/record"
	"github.com/ict-project/goqueue/internal/segment"
)

// Engine drives one queue directory's segment pool. A single Engine is
// meant to be shared, through internal/registry, by every handle opened on
// the same directory within one process; it is safe for concurrent use.
type Engine struct {
	dir     string
	pool    *segment.Pool
	lock    *dirlock.Lock
	cfg     Config
	logger  log.Logger
	metrics *metrics

	writeMu          sync.Mutex
	writeFile        *os.File
	writePending     bool
	writePendingSize int

	readMu          sync.Mutex
	readFile        *os.File
	readPending     bool
	readPendingSize int

	queueSize atomic.Int64
	readySize bool
}

// Open opens (or creates the in-memory view of) the queue directory at dir.
// The directory itself must already exist.
func Open(dir string, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	pool, err := segment.Open(dir, cfg.MaxFileSize, cfg.MaxFiles, cfg.Logger)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		dir:     dir,
		pool:    pool,
		lock:    dirlock.Open(dir),
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: newMetrics(cfg.Registerer),
	}

	if err := e.lock.With(e.refreshLocked); err != nil {
		return nil, errors.Wrap(err, "storage: initial refresh")
	}
	return e, nil
}

// Close releases the engine's open file handles. The directory and its
// segments persist on disk.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.readMu.Lock()
	defer e.readMu.Unlock()

	var firstErr error
	if e.writeFile != nil {
		if err := e.writeFile.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "storage: close write head")
		}
		e.writeFile = nil
	}
	if e.readFile != nil {
		if err := e.readFile.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "storage: close read tail")
		}
		e.readFile = nil
	}
	return firstErr
}

// WriteSize begins a write: it records the payload length that the
// following WriteContent call must supply exactly. The header is made
// durable by the fsync in WriteContent.
func (e *Engine) WriteSize(n int) error {
	if n < 0 {
		return errors.Wrap(qerr.ErrInvalidArgument, "storage: negative payload size")
	}
	return e.lock.With(func() error {
		if err := e.refreshLocked(); err != nil {
			return err
		}
		e.writeMu.Lock()
		defer e.writeMu.Unlock()
		return e.writeSizeLocked(n)
	})
}

func (e *Engine) writeSizeLocked(n int) error {
	if e.writePending {
		return errors.Wrap(qerr.ErrDomain, "storage: write size already pending")
	}
	if err := e.ensureWriteHeadLocked(); err != nil {
		return err
	}
	// The read side may have appended bookkeeping records to this segment
	// since the last write; start the new record at the current end.
	if _, err := e.writeFile.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "storage: seek write head end")
	}
	if err := record.WriteHeader(e.writeFile, record.TagPayloadSize, uint64(n)); err != nil {
		if e.metrics != nil {
			e.metrics.writeFailures.Inc()
		}
		return errors.Wrap(err, "storage: write size header")
	}
	e.writePending = true
	e.writePendingSize = n
	return nil
}

// WriteContent completes a pending write begun by WriteSize. len(buf) must
// equal the size passed to WriteSize.
func (e *Engine) WriteContent(buf []byte) error {
	return e.lock.With(func() error {
		if err := e.refreshLocked(); err != nil {
			return err
		}
		e.writeMu.Lock()
		defer e.writeMu.Unlock()
		return e.writeContentLocked(buf)
	})
}

func (e *Engine) writeContentLocked(buf []byte) error {
	if !e.writePending {
		return errors.Wrap(qerr.ErrDomain, "storage: content without pending size")
	}
	n := e.writePendingSize
	if len(buf) != n {
		return errors.Wrapf(qerr.ErrInvalidArgument, "storage: content length %d does not match pending size %d", len(buf), n)
	}
	if n > 0 {
		if _, err := e.writeFile.Write(buf); err != nil {
			if e.metrics != nil {
				e.metrics.writeFailures.Inc()
			}
			return errors.Wrap(err, "storage: write content")
		}
	}
	if err := e.writeFile.Sync(); err != nil {
		if e.metrics != nil {
			e.metrics.writeFailures.Inc()
		}
		return errors.Wrap(err, "storage: fsync write head")
	}
	if e.metrics != nil {
		e.metrics.fsyncs.Inc()
	}
	e.writePending = false
	e.writePendingSize = 0
	e.queueSize.Inc()
	if e.metrics != nil {
		e.metrics.queueSize.Set(float64(e.queueSize.Load()))
	}
	return nil
}

// ensureWriteHeadLocked rotates to a fresh head if the current head has
// grown past MaxFileSize (or none exists yet), and otherwise makes sure a
// write handle is open on the existing head — reopening it if a prior
// refresh closed it, without minting a new segment.
func (e *Engine) ensureWriteHeadLocked() error {
	needs, err := e.pool.NeedsRotation()
	if err != nil {
		return err
	}
	if needs {
		return e.rotateLocked()
	}
	if e.writeFile == nil {
		return e.reopenWriteHeadLocked()
	}
	return nil
}

// reopenWriteHeadLocked opens a write handle on the existing head segment,
// positioned at its end so subsequent writes append.
func (e *Engine) reopenWriteHeadLocked() error {
	path, err := e.pool.HeadPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "storage: reopen write head")
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return errors.Wrap(err, "storage: seek write head end")
	}
	e.writeFile = f
	return nil
}

// rotateLocked allocates a new write head. A head created while other
// segments exist starts with a TagQueueSize record carrying the current
// queue length; a head created in an empty pool starts with no record.
func (e *Engine) rotateLocked() error {
	wasEmpty := e.pool.Empty()

	if e.writeFile != nil {
		if err := e.writeFile.Close(); err != nil {
			return errors.Wrap(err, "storage: close old write head")
		}
		e.writeFile = nil
	}

	path, err := e.pool.PushFront()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "storage: open new write head")
	}
	e.writeFile = f

	if !wasEmpty {
		if err := record.WriteHeader(e.writeFile, record.TagQueueSize, uint64(e.queueSize.Load())); err != nil {
			return errors.Wrap(err, "storage: write rotation baseline")
		}
	}

	if e.metrics != nil {
		e.metrics.rotations.Inc()
	}
	level.Debug(e.logger).Log("msg", "rotated write head", "path", path)

	return e.writeFingerprintLocked()
}

func (e *Engine) writeFingerprintLocked() error {
	fp := dirlock.ComputeFingerprint(e.pool.Numbers())
	return e.lock.WriteFingerprint(fp)
}

// ReadSize begins a read: it returns the length of the next payload,
// skipping over bookkeeping records and advancing across segment
// boundaries as needed.
func (e *Engine) ReadSize() (int, error) {
	var n int
	err := e.lock.With(func() error {
		if err := e.refreshLocked(); err != nil {
			return err
		}
		e.readMu.Lock()
		defer e.readMu.Unlock()
		var err error
		n, err = e.readSizeLocked()
		return err
	})
	return n, err
}

func (e *Engine) readSizeLocked() (int, error) {
	if e.readPending {
		return 0, errors.Wrap(qerr.ErrDomain, "storage: read size already pending")
	}
	if e.queueSize.Load() <= 0 {
		return 0, errors.Wrap(qerr.ErrUnderflow, "storage: pop on empty queue")
	}

	for {
		if err := e.ensureReadFileLocked(); err != nil {
			return 0, err
		}
		tag, data, err := record.ReadHeader(e.readFile)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			advanced, aerr := e.advanceReadSegmentLocked()
			if aerr != nil {
				return 0, aerr
			}
			if !advanced {
				return 0, errors.Wrap(qerr.ErrUnderflow, "storage: no more payloads on disk")
			}
			continue
		}
		if err != nil {
			if e.metrics != nil {
				e.metrics.readFailures.Inc()
			}
			return 0, errors.Wrap(err, "storage: read size header")
		}
		if tag != record.TagPayloadSize {
			continue
		}
		e.readPending = true
		e.readPendingSize = int(data)
		return int(data), nil
	}
}

// ensureReadFileLocked opens the current tail for reading if no read
// stream is open, resuming at the offset recorded by a prior run.
func (e *Engine) ensureReadFileLocked() error {
	if e.readFile != nil {
		return nil
	}
	if e.pool.Empty() {
		return errors.Wrap(qerr.ErrUnderflow, "storage: no segments to read")
	}
	path, err := e.pool.TailPath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(err, "storage: open tail for read")
	}
	pos, err := positionFromFile(path)
	if err != nil {
		f.Close()
		return err
	}
	if pos == 0 {
		// Mark the start of reading explicitly so a future cold start that
		// re-scans this segment from byte 0 finds it, even though the
		// default resume position is already zero. Appended at EOF so it
		// does not disturb the payload framing a forward scan relies on.
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return errors.Wrap(err, "storage: seek tail end")
		}
		if err := record.WriteHeader(f, record.TagReadPointer, 0); err != nil {
			f.Close()
			return errors.Wrap(err, "storage: write read pointer marker")
		}
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		f.Close()
		return errors.Wrap(err, "storage: seek resume position")
	}
	e.readFile = f
	return nil
}

// advanceReadSegmentLocked is called when the current tail is exhausted. It
// reports false when there is nowhere left to advance to.
func (e *Engine) advanceReadSegmentLocked() (bool, error) {
	if e.pool.Size() <= 1 {
		return false, nil
	}
	if e.readFile != nil {
		if err := e.readFile.Close(); err != nil {
			return false, errors.Wrap(err, "storage: close exhausted tail")
		}
		e.readFile = nil
	}
	if err := e.pool.PopBack(); err != nil {
		return false, err
	}
	if err := e.writeFingerprintLocked(); err != nil {
		return false, err
	}
	if err := e.ensureReadFileLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// ReadContent completes a pending read begun by ReadSize. buf must be at
// least as long as the size returned by ReadSize.
func (e *Engine) ReadContent(buf []byte) error {
	return e.lock.With(func() error {
		if err := e.refreshLocked(); err != nil {
			return err
		}
		e.readMu.Lock()
		defer e.readMu.Unlock()
		return e.readContentLocked(buf)
	})
}

func (e *Engine) readContentLocked(buf []byte) error {
	if !e.readPending {
		return errors.Wrap(qerr.ErrDomain, "storage: content without pending size")
	}
	n := e.readPendingSize
	if len(buf) < n {
		return errors.Wrapf(qerr.ErrInvalidArgument, "storage: buffer shorter than pending size %d", n)
	}
	if n > 0 {
		if _, err := io.ReadFull(e.readFile, buf[:n]); err != nil {
			if e.metrics != nil {
				e.metrics.readFailures.Inc()
			}
			return errors.Wrap(err, "storage: read content")
		}
	}

	pos, err := e.readFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "storage: tell read position")
	}
	if _, err := e.readFile.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrap(err, "storage: seek tail end")
	}
	if err := record.WriteHeader(e.readFile, record.TagReadConfirm, uint64(pos)); err != nil {
		return errors.Wrap(err, "storage: write read confirm")
	}
	if err := e.readFile.Sync(); err != nil {
		return errors.Wrap(err, "storage: fsync tail")
	}
	if e.metrics != nil {
		e.metrics.fsyncs.Inc()
	}
	if _, err := e.readFile.Seek(pos, io.SeekStart); err != nil {
		return errors.Wrap(err, "storage: restore read position")
	}

	e.readPending = false
	e.readPendingSize = 0
	e.queueSize.Dec()
	if e.metrics != nil {
		e.metrics.queueSize.Set(float64(e.queueSize.Load()))
	}
	return nil
}

// Size returns the queue's current logical length.
func (e *Engine) Size() (int64, error) {
	var n int64
	err := e.lock.With(func() error {
		if err := e.refreshLocked(); err != nil {
			return err
		}
		n = e.queueSize.Load()
		return nil
	})
	return n, err
}

// Empty reports whether the queue currently holds no payloads.
func (e *Engine) Empty() (bool, error) {
	n, err := e.Size()
	return n == 0, err
}

// Clear deletes every segment and resets the queue to empty.
func (e *Engine) Clear() error {
	return e.lock.With(func() error {
		e.writeMu.Lock()
		defer e.writeMu.Unlock()
		e.readMu.Lock()
		defer e.readMu.Unlock()

		if e.writeFile != nil {
			if err := e.writeFile.Close(); err != nil {
				return errors.Wrap(err, "storage: close write head before clear")
			}
			e.writeFile = nil
		}
		if e.readFile != nil {
			if err := e.readFile.Close(); err != nil {
				return errors.Wrap(err, "storage: close read tail before clear")
			}
			e.readFile = nil
		}
		if err := e.pool.Clear(); err != nil {
			return err
		}
		e.writePending = false
		e.readPending = false
		e.queueSize.Store(0)
		e.readySize = true
		if e.metrics != nil {
			e.metrics.queueSize.Set(0)
		}
		return e.writeFingerprintLocked()
	})
}

// refreshLocked reconciles in-memory state against the directory's durable
// state. Must be called while the directory lock is held.
func (e *Engine) refreshLocked() error {
	onDisk, err := e.lock.ReadFingerprint()
	if err != nil {
		return err
	}
	mine := dirlock.ComputeFingerprint(e.pool.Numbers())

	// External mutation is detected solely through the fingerprint, which
	// only changes when the segment set itself changes (rotation, or a
	// segment being dropped). The write and read descriptors both append to
	// segment files independently of each other as part of normal
	// operation (bookkeeping records on the read side, payloads on the
	// write side), so comparing a descriptor's cached offset against the
	// file's live on-disk size would misread those expected appends as
	// external mutation.
	if onDisk == mine && e.readySize {
		return nil
	}

	level.Debug(e.logger).Log("msg", "reloading queue state", "dir", e.dir)

	if e.writeFile != nil {
		e.writeFile.Close()
		e.writeFile = nil
	}
	if e.readFile != nil {
		e.readFile.Close()
		e.readFile = nil
	}
	e.writePending = false
	e.readPending = false

	if err := e.pool.Reload(); err != nil {
		return err
	}
	size, err := sizeFromFile(e.pool)
	if err != nil {
		return err
	}
	e.queueSize.Store(size)
	e.readySize = true
	if e.metrics != nil {
		e.metrics.queueSize.Set(float64(size))
	}

	if reloaded := dirlock.ComputeFingerprint(e.pool.Numbers()); reloaded != onDisk {
		if err := e.lock.WriteFingerprint(reloaded); err != nil {
			return err
		}
	}
	return nil
}
