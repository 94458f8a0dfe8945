package job

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidTransitionMainChain(t *testing.T) {
	chain := []Stage{Queued, Downloading, Downloaded, Encoding, Encoded, Uploading, Uploaded}
	for i := 0; i < len(chain)-1; i++ {
		require.True(t, ValidTransition(chain[i], chain[i+1]), "%s -> %s should be valid", chain[i], chain[i+1])
	}
}

func TestValidTransitionRejectsSkips(t *testing.T) {
	require.False(t, ValidTransition(Queued, Encoding))
	require.False(t, ValidTransition(Downloaded, Downloading))
}

func TestValidTransitionToTerminalFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Stage{Queued, Downloading, Downloaded, Encoding, Encoded, Uploading} {
		for _, to := range []Stage{Failed, Declined, Cancelled} {
			require.True(t, ValidTransition(from, to), "%s -> %s should be valid", from, to)
		}
	}
}

func TestNoTransitionOutOfTerminal(t *testing.T) {
	for _, from := range []Stage{Uploaded, Failed, Declined, Cancelled} {
		require.False(t, ValidTransition(from, Downloading))
		require.False(t, ValidTransition(from, Failed))
	}
}

func TestTerminal(t *testing.T) {
	require.True(t, Uploaded.Terminal())
	require.True(t, Failed.Terminal())
	require.True(t, Declined.Terminal())
	require.True(t, Cancelled.Terminal())
	require.False(t, Queued.Terminal())
	require.False(t, Encoding.Terminal())
}

func TestDirectoryForUniqueness(t *testing.T) {
	a := DirectoryFor("DB", 1, 100, 1700000000)
	b := DirectoryFor("DB", 1, 101, 1700000000)
	require.NotEqual(t, a, b)
}
