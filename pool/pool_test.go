package pool

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir)
	require.NoError(t, err)
	defer p.Close()

	ids := []string{"α", "β", "qwert1234~!()_|-.@#"}
	for _, id := range ids {
		require.NoError(t, p.Push(id, []byte(id)))
	}

	got, err := p.IDs()
	require.NoError(t, err)
	sort.Strings(got)
	want := append([]string(nil), ids...)
	sort.Strings(want)
	require.Equal(t, want, got)

	for _, id := range ids {
		payload, err := p.Pop(id)
		require.NoError(t, err)
		require.Equal(t, []byte(id), payload)
	}

	size, err := p.Size()
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	remaining, err := p.IDs()
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestPoolPopMissingSubQueueUnderflows(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Pop("nope")
	require.Error(t, err)
}

func TestPushIDPopIDWithIntegerKeys(t *testing.T) {
	dir := t.TempDir()
	p, err := Open(dir)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, PushID(p, 42, []byte("answer")))
	got, err := PopID(p, 42)
	require.NoError(t, err)
	require.Equal(t, []byte("answer"), got)
}

func TestPriorityDrainsHighestFirstFIFOWithinLevel(t *testing.T) {
	dir := t.TempDir()
	pr, err := OpenPriority(dir)
	require.NoError(t, err)
	defer pr.Close()

	require.NoError(t, pr.Push(5, []byte("A")))
	require.NoError(t, pr.Push(9, []byte("B")))
	require.NoError(t, pr.Push(5, []byte("C")))
	require.NoError(t, pr.Push(9, []byte("D")))

	var order [][]byte
	for i := 0; i < 4; i++ {
		got, err := pr.Pop()
		require.NoError(t, err)
		order = append(order, got)
	}
	require.Equal(t, [][]byte{[]byte("B"), []byte("D"), []byte("A"), []byte("C")}, order)

	_, err = pr.Pop()
	require.Error(t, err)
}

func TestNestedPoolRoundTrip(t *testing.T) {
	dir := t.TempDir()
	n, err := OpenNested(dir)
	require.NoError(t, err)
	defer n.Close()

	require.NoError(t, n.Push("tenant-a", "5", []byte("x")))
	require.NoError(t, n.Push("tenant-b", "5", []byte("y")))

	got, err := n.Pop("tenant-a", "5")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)

	got, err = n.Pop("tenant-b", "5")
	require.NoError(t, err)
	require.Equal(t, []byte("y"), got)
}
