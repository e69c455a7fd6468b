package dirlock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadFingerprintMissingFileIsUnknown(t *testing.T) {
	dir := t.TempDir()
	l := Open(dir)
	fp, err := l.ReadFingerprint()
	require.NoError(t, err)
	require.Equal(t, unknown, fp)
}

func TestWriteReadFingerprintRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := Open(dir)
	require.NoError(t, l.With(func() error {
		return l.WriteFingerprint(Fingerprint{Count: 3, Hash: 0xdeadbeef})
	}))

	fp, err := l.ReadFingerprint()
	require.NoError(t, err)
	require.Equal(t, Fingerprint{Count: 3, Hash: 0xdeadbeef}, fp)
}

func TestComputeFingerprintOrderIndependent(t *testing.T) {
	a := ComputeFingerprint([]uint64{1, 2, 3})
	b := ComputeFingerprint([]uint64{3, 1, 2})
	require.Equal(t, a, b)
}

func TestComputeFingerprintDiffersOnDifferentSets(t *testing.T) {
	a := ComputeFingerprint([]uint64{1, 2, 3})
	b := ComputeFingerprint([]uint64{1, 2, 4})
	require.NotEqual(t, a, b)
}

func TestWithReleasesOnError(t *testing.T) {
	dir := t.TempDir()
	l := Open(dir)
	err := l.With(func() error { return require.AnError })
	require.Error(t, err)

	// lock must be released: a second With must not block forever.
	require.NoError(t, l.With(func() error { return nil }))
}
