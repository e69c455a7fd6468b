// Package record implements the tagged fixed-header framing used for every
// entry written to a segment file: a one-byte tag followed by an eight-byte
// little-endian data field. The format carries no checksum; crash
// consistency relies on callers treating a short read at the tail of the
// newest segment as a clean end-of-stream rather than corruption.
package record

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Tag identifies the kind of record stored at a given offset.
type Tag uint8

const (
	// TagPayloadSize precedes a pushed element's bytes; Data holds the
	// element's length.
	TagPayloadSize Tag = 1
	// TagReadPointer records the byte offset of the read cursor within the
	// segment it is written into. It is appended to a tail segment when that
	// segment is opened for reading with a resume offset of zero.
	TagReadPointer Tag = 2
	// TagReadConfirm marks that a payload previously described by a
	// TagPayloadSize record has been fully consumed by a reader.
	TagReadConfirm Tag = 3
	// TagQueueSize carries the running element count as of the moment a
	// segment was rotated. Cold-start recovery does not use it: the length
	// is recomputed from TagPayloadSize and TagReadConfirm records.
	TagQueueSize Tag = 4
)

// HeaderSize is the on-disk size in bytes of a record header.
const HeaderSize = 1 + 8

// WriteHeader writes a tagged header to w.
func WriteHeader(w io.Writer, tag Tag, data uint64) error {
	var buf [HeaderSize]byte
	buf[0] = byte(tag)
	binary.LittleEndian.PutUint64(buf[1:], data)
	if _, err := w.Write(buf[:]); err != nil {
		return errors.Wrap(err, "record: write header")
	}
	return nil
}

// ReadHeader reads a tagged header from r. A clean end of stream (zero bytes
// read before the header) is reported as io.EOF; a header truncated partway
// through is reported as io.ErrUnexpectedEOF, so callers can tell a
// fully-written tail from one interrupted mid-write.
func ReadHeader(r io.Reader) (Tag, uint64, error) {
	var buf [HeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			return 0, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return 0, 0, io.ErrUnexpectedEOF
		}
		return 0, 0, errors.Wrap(err, "record: read header")
	}
	return Tag(buf[0]), binary.LittleEndian.Uint64(buf[1:]), nil
}
