package protocol

import (
	"testing"

	"github.com/relayforge/mediaforge/wire"
	"github.com/stretchr/testify/require"
)

// TestNegotiateAndRoundTrip mirrors scenario E1 end to end: negotiate a
// key from a synthetic handshake line, build a nested frame, and extract it
// back out structurally equal.
func TestNegotiateAndRoundTrip(t *testing.T) {
	s := NewSession(ToolInfo{Tool: "B", Build: "1", Version: 1}, 1)

	key, err := s.Negotiate("PNprotocol:A@1@1:B@1@1:ABC")
	require.NoError(t, err)
	require.Equal(t, "ABC", key)

	schema := wire.Multi(wire.Leaf(), wire.Multi(wire.Leaf(), wire.Leaf()))
	data := wire.MultiValue(
		wire.Single("hello:world"),
		wire.MultiValue(wire.Single("path/to/100%?done?"), wire.Single("42")),
	)

	line, err := s.BuildInfoString(key, schema, data)
	require.NoError(t, err)
	require.True(t, len(line) > len(key))

	gotKey, gotData, err := s.ExtractData(line, schema)
	require.NoError(t, err)
	require.Equal(t, key, gotKey)
	require.True(t, data.Equal(gotData))
}

func TestNegotiateRejectsNonNegotiationLine(t *testing.T) {
	s := NewSession(ToolInfo{Tool: "B", Build: "1", Version: 1}, 1)
	_, err := s.Negotiate("ABC:0:done")
	require.ErrorIs(t, err, ErrNotNegotiationLine)
}

func TestNegotiateRejectsUnsupportedVersion(t *testing.T) {
	s := NewSession(ToolInfo{Tool: "B", Build: "1", Version: 1}, 1)
	_, err := s.Negotiate("PNprotocol:A@1@99:B@1@1:ABC")
	require.ErrorIs(t, err, ErrInvalidNegotiation)
}

func TestExtractDataUnknownKey(t *testing.T) {
	s := NewSession(ToolInfo{Tool: "B", Build: "1", Version: 1}, 1)
	_, _, err := s.ExtractData("NOPE:0:done", wire.Multi(wire.Leaf(), wire.Leaf()))
	require.ErrorIs(t, err, ErrUnknownNegKey)
}

func TestRequestThenSelfNegotiatedFrame(t *testing.T) {
	self := ToolInfo{Tool: "pntorrent", Build: "abc123", Version: 1}
	target := ToolInfo{Tool: "coordinatord", Build: "abc123", Version: 1}
	s := NewSession(self, 1)

	line, err := s.Request(target, "KEY1")
	require.NoError(t, err)
	require.Contains(t, line, "PNprotocol:pntorrent@abc123@1:coordinatord@abc123@1:KEY1")

	schema := wire.Multi(wire.Leaf(), wire.Leaf())
	built, err := s.BuildInfoString("KEY1", schema, wire.MultiValue(wire.Single("0"), wire.Single("done")))
	require.NoError(t, err)
	require.Contains(t, built, "KEY1:")
}
