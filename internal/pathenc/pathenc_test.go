package pathenc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"plain",
		"α",
		"β",
		"qwert1234~!()_|-.@#",
		"",
		"a b/c",
	}
	for _, c := range cases {
		enc := Encode(c)
		require.Equal(t, c, Decode(enc))
	}
}

func TestEncodeLeavesSafeCharsAlone(t *testing.T) {
	require.Equal(t, "abcXYZ019()_-|.", Encode("abcXYZ019()_-|."))
}

func TestEncodeEscapesUnsafeBytes(t *testing.T) {
	require.Equal(t, "a%20b", Encode("a b"))
	require.Equal(t, "%ce%b1", Encode("α"))
}
