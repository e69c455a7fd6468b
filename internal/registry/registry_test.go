package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	closed  bool
	closeFn func()
}

func (f *fakeEngine) Close() error {
	f.closed = true
	if f.closeFn != nil {
		f.closeFn()
	}
	return nil
}

func TestAcquireSamePathSharesEngine(t *testing.T) {
	dir := t.TempDir()
	r := New()

	opens := 0
	open := func(string) (Engine, error) {
		opens++
		return &fakeEngine{}, nil
	}

	e1, release1, err := r.Acquire(dir, open)
	require.NoError(t, err)
	e2, release2, err := r.Acquire(dir, open)
	require.NoError(t, err)

	require.Same(t, e1, e2)
	require.Equal(t, 1, opens)

	require.NoError(t, release1())
	require.False(t, e1.(*fakeEngine).closed)
	require.NoError(t, release2())
	require.True(t, e1.(*fakeEngine).closed)
}

func TestAcquireDifferentPathsDistinctEngines(t *testing.T) {
	r := New()
	dirA := t.TempDir()
	dirB := t.TempDir()

	open := func(string) (Engine, error) { return &fakeEngine{}, nil }

	ea, relA, err := r.Acquire(dirA, open)
	require.NoError(t, err)
	eb, relB, err := r.Acquire(dirB, open)
	require.NoError(t, err)

	require.NotSame(t, ea, eb)
	require.NoError(t, relA())
	require.NoError(t, relB())
}
