package queue

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/ict-project/goqueue/internal/qerr"
)

// FixedWidth constrains PushElems/PopElems to types whose in-memory
// representation can be copied byte-for-byte, standing in for the
// trivially-copyable template parameter of the original C++ design.
type FixedWidth interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// PushElems serialises elems as raw bytes (element count times the type's
// native width, no endianness conversion) and pushes them as a single
// payload. The result is only portable back to a reader on a host with the
// same element width and byte order.
func PushElems[T FixedWidth](q *Queue, elems []T) error {
	if len(elems) == 0 {
		return q.Push(nil)
	}
	var zero T
	width := int(unsafe.Sizeof(zero))
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&elems[0])), len(elems)*width)
	return q.Push(buf)
}

// PopElems pops one payload and reinterprets it as a slice of T. It returns
// ErrInvalidArgument if the payload's length is not a multiple of T's
// width.
func PopElems[T FixedWidth](q *Queue) ([]T, error) {
	buf, err := q.Pop()
	if err != nil {
		return nil, err
	}
	var zero T
	width := int(unsafe.Sizeof(zero))
	if len(buf) == 0 {
		return []T{}, nil
	}
	if len(buf)%width != 0 {
		return nil, errors.Wrapf(qerr.ErrInvalidArgument, "queue: payload length %d not a multiple of element width %d", len(buf), width)
	}
	count := len(buf) / width
	elems := unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), count)
	out := make([]T, count)
	copy(out, elems)
	return out, nil
}
