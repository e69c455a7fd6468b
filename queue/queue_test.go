package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopRoundTrip(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push([]byte("hello")))
	require.NoError(t, q.Push([]byte("world")))

	got, err := q.Pop()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	got, err = q.Pop()
	require.NoError(t, err)
	require.Equal(t, []byte("world"), got)
}

func TestPopOnEmptyQueueUnderflows(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir)
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Pop()
	require.ErrorIs(t, err, ErrUnderflow)
}

func TestCompressedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir, WithCompress(true))
	require.NoError(t, err)
	defer q.Close()

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 7)
	}
	require.NoError(t, q.Push(payload))

	got, err := q.Pop()
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestPushElemsPopElemsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir)
	require.NoError(t, err)
	defer q.Close()

	in := []int64{1, 2, 3, 42, -7}
	require.NoError(t, PushElems(q, in))

	out, err := PopElems[int64](q)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestTwoHandlesOnSameDirectoryShareEngine(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	require.NoError(t, err)
	b, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, a.Push([]byte("shared")))
	got, err := b.Pop()
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), got)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	q, err := Open(dir)
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push([]byte("x")))
	require.NoError(t, q.Clear())

	empty, err := q.Empty()
	require.NoError(t, err)
	require.True(t, empty)
}
