package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenEmptyDir(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 100, 0, nil)
	require.NoError(t, err)
	require.True(t, p.Empty())
	require.Equal(t, 0, p.Size())
}

func TestPushFrontAllocatesSequentially(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 100, 0, nil)
	require.NoError(t, err)

	path0, err := p.PushFront()
	require.NoError(t, err)
	require.FileExists(t, path0)
	require.Equal(t, filepath.Join(dir, "0000000000000000.dat"), path0)

	path1, err := p.PushFront()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "0000000000000001.dat"), path1)

	require.Equal(t, 2, p.Size())
	head, err := p.PathAt(0)
	require.NoError(t, err)
	require.Equal(t, path1, head)
	tail, err := p.PathAt(1)
	require.NoError(t, err)
	require.Equal(t, path0, tail)
}

func TestPopBackDeletesTail(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 100, 0, nil)
	require.NoError(t, err)
	_, err = p.PushFront()
	require.NoError(t, err)
	tail, err := p.TailPath()
	require.NoError(t, err)

	require.NoError(t, p.PopBack())
	require.NoFileExists(t, tail)
	require.True(t, p.Empty())
}

func TestPopBackUnderflow(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 100, 0, nil)
	require.NoError(t, err)
	require.Error(t, p.PopBack())
}

func TestPushFrontOverflow(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 100, 1, nil)
	require.NoError(t, err)
	_, err = p.PushFront()
	require.NoError(t, err)
	_, err = p.PushFront()
	require.Error(t, err)
}

func TestOpenHealsGapInContiguousRun(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"0000000000000000.dat", "0000000000000001.dat", "0000000000000005.dat"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	p, err := Open(dir, 100, 0, nil)
	require.NoError(t, err)
	// head is segment 5, but 4/3/2 are missing so the contiguous run is just {5}.
	require.Equal(t, 1, p.Size())
	numbers := p.Numbers()
	require.Equal(t, []uint64{5}, numbers)
}

func TestClearRemovesAllSegments(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 100, 0, nil)
	require.NoError(t, err)
	_, err = p.PushFront()
	require.NoError(t, err)
	_, err = p.PushFront()
	require.NoError(t, err)

	require.NoError(t, p.Clear())
	require.True(t, p.Empty())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNeedsRotation(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir, 4, 0, nil)
	require.NoError(t, err)

	need, err := p.NeedsRotation()
	require.NoError(t, err)
	require.True(t, need, "empty pool needs rotation")

	path, err := p.PushFront()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o644))

	need, err = p.NeedsRotation()
	require.NoError(t, err)
	require.True(t, need)
}
