package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func push(t *testing.T, e *Engine, payload []byte) {
	t.Helper()
	require.NoError(t, e.WriteSize(len(payload)))
	require.NoError(t, e.WriteContent(payload))
}

func pop(t *testing.T, e *Engine) []byte {
	t.Helper()
	n, err := e.ReadSize()
	require.NoError(t, err)
	buf := make([]byte, n)
	require.NoError(t, e.ReadContent(buf))
	return buf
}

func fixture() [][]byte {
	return [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("bbb"),
		[]byte(strings.Repeat("x", 1000)),
		[]byte("hello"),
		[]byte("world"),
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, WithMaxFileSize(100))
	require.NoError(t, err)

	for _, p := range fixture() {
		push(t, e, p)
	}
	require.NoError(t, e.Close())

	e2, err := Open(dir, WithMaxFileSize(100))
	require.NoError(t, err)
	defer e2.Close()

	size, err := e2.Size()
	require.NoError(t, err)
	require.EqualValues(t, 6, size)

	for _, want := range fixture() {
		got := pop(t, e2)
		require.Equal(t, want, got)
	}
}

func TestRotationLeavesOneSegmentAfterDrain(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, WithMaxFileSize(100))
	require.NoError(t, err)
	defer e.Close()

	for _, p := range fixture() {
		push(t, e, p)
	}
	require.True(t, e.pool.Size() > 1, "the 1000-byte item should have forced rotation")

	for range fixture() {
		pop(t, e)
	}

	size, err := e.Size()
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
	require.Equal(t, 1, e.pool.Size())
}

func TestInterleavedPushPop(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, WithMaxFileSize(100))
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < 100; i++ {
		push(t, e, []byte("x"))
		got := pop(t, e)
		require.Equal(t, []byte("x"), got)
	}

	size, err := e.Size()
	require.NoError(t, err)
	require.EqualValues(t, 0, size)
	require.Equal(t, 1, e.pool.Size())
}

func TestRecoveryAfterAbandonedHandle(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, WithMaxFileSize(100))
	require.NoError(t, err)
	for _, p := range fixture() {
		push(t, e, p)
	}
	// No Close call: simulate a crash that loses the in-memory handle but
	// leaves the durable files intact.

	e2, err := Open(dir, WithMaxFileSize(100))
	require.NoError(t, err)
	defer e2.Close()

	size, err := e2.Size()
	require.NoError(t, err)
	require.EqualValues(t, 6, size)
	for _, want := range fixture() {
		require.Equal(t, want, pop(t, e2))
	}
}

func TestZeroLengthPayloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	push(t, e, []byte{})
	got := pop(t, e)
	require.Equal(t, []byte{}, got)
}

func TestWriteContentWithoutSizeIsDomainError(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	err = e.WriteContent([]byte("x"))
	require.Error(t, err)
}

func TestReadSizeOnEmptyQueueIsUnderflow(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.ReadSize()
	require.Error(t, err)
}

func TestClearResetsQueue(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	push(t, e, []byte("a"))
	push(t, e, []byte("b"))
	require.NoError(t, e.Clear())

	size, err := e.Size()
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	push(t, e, []byte("c"))
	require.Equal(t, []byte("c"), pop(t, e))
}

func TestMultiHandleVisibilityAfterRefresh(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dir)
	require.NoError(t, err)
	defer b.Close()

	push(t, a, []byte("from-a"))

	got := pop(t, b)
	require.Equal(t, []byte("from-a"), got)
}
