package storage

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/record"
	"github.com/ict-project/goqueue/internal/segment"
)

// positionFromFile forward-scans path from byte 0 and returns the Data of
// the last TagReadPointer or TagReadConfirm record seen, which is the byte
// offset reading should resume from. A truncated trailing record ends the
// scan as if it were a clean EOF.
func positionFromFile(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "storage: open segment for position scan")
	}
	defer f.Close()

	var pos int64
	for {
		tag, data, err := record.ReadHeader(f)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return 0, errors.Wrap(err, "storage: position scan")
		}
		switch tag {
		case record.TagReadPointer, record.TagReadConfirm:
			pos = int64(data)
		case record.TagPayloadSize:
			if data > 0 {
				if _, err := f.Seek(int64(data), io.SeekCurrent); err != nil {
					return 0, errors.Wrap(err, "storage: skip payload during position scan")
				}
			}
		}
	}
	return pos, nil
}

// sizeFromFile reconstructs the queue's logical length by scanning every
// retained segment from oldest to newest: each TagPayloadSize adds one and
// each TagReadConfirm subtracts one. A TagReadConfirm is always written into
// the segment holding the payload it confirms, so every retained segment
// contributes exactly its unread payloads and a deleted (fully consumed)
// segment contributes nothing. TagQueueSize records are skipped.
func sizeFromFile(pool *segment.Pool) (int64, error) {
	if pool.Empty() {
		return 0, nil
	}
	// The count starts at zero and accumulates across all retained segments.
	var (
		total int64
		found = true
	)
	for i := pool.Size() - 1; i >= 0; i-- {
		path, err := pool.PathAt(i)
		if err != nil {
			return 0, err
		}
		total, found, err = scanSegmentForSize(path, found, total)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

func scanSegmentForSize(path string, found bool, baseline int64) (int64, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return baseline, found, errors.Wrap(err, "storage: open segment for size scan")
	}
	defer f.Close()

	for {
		tag, data, err := record.ReadHeader(f)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return baseline, found, errors.Wrap(err, "storage: size scan")
		}
		switch tag {
		case record.TagPayloadSize:
			if found {
				baseline++
			}
			if data > 0 {
				if _, err := f.Seek(int64(data), io.SeekCurrent); err != nil {
					return baseline, found, errors.Wrap(err, "storage: skip payload during size scan")
				}
			}
		case record.TagReadConfirm:
			if found {
				baseline--
			}
		}
	}
	return baseline, found, nil
}
