package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNestedCodecRoundTrip mirrors scenario E1: schema
// Multi([Leaf, Multi([Leaf, Leaf])]) with data containing all three
// reserved delimiters in its leaves.
func TestNestedCodecRoundTrip(t *testing.T) {
	schema := Multi(Leaf(), Multi(Leaf(), Leaf()))
	data := MultiValue(
		Single("hello:world"),
		MultiValue(Single("path/to/100%?done?"), Single("42")),
	)

	serialized, err := Serialize(schema, data)
	require.NoError(t, err)
	require.NotContains(t, serialized, "hello:world")

	parsed, err := Parse(schema, serialized)
	require.NoError(t, err)
	require.True(t, data.Equal(parsed), "expected %v, got %v", data, parsed)
}

func TestSerializeShapeMismatch(t *testing.T) {
	schema := Multi(Leaf(), Leaf())
	data := MultiValue(Single("only-one"))
	_, err := Serialize(schema, data)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSerializeLeafShapeMismatch(t *testing.T) {
	schema := Leaf()
	data := MultiValue(Single("a"), Single("b"))
	_, err := Serialize(schema, data)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestParseNestedProgressTuple(t *testing.T) {
	// A progress tuple ["0", ["33", "1000", "3000"]]: the outer pair is split
	// on ':' and the inner three-field tuple on '/', and parsing the
	// serialized line recovers a structurally-equal tree.
	schema := Multi(Leaf(), Multi(Leaf(), Leaf(), Leaf()))
	data := MultiValue(Single("0"), MultiValue(Single("33"), Single("1000"), Single("3000")))

	serialized, err := Serialize(schema, data)
	require.NoError(t, err)

	parsed, err := Parse(schema, serialized)
	require.NoError(t, err)
	require.True(t, data.Equal(parsed))
}

func TestRoundTripArbitraryLeaves(t *testing.T) {
	schema := Multi(Leaf(), Leaf(), Leaf())
	leaves := []string{"a:b", "c/d%e", "f?g?h"}
	data := MultiValue(Single(leaves[0]), Single(leaves[1]), Single(leaves[2]))

	serialized, err := Serialize(schema, data)
	require.NoError(t, err)

	parsed, err := Parse(schema, serialized)
	require.NoError(t, err)
	require.True(t, data.Equal(parsed))
}
