package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsObjectNotFound(t *testing.T) {
	err := NewObjectNotFoundError("foo", fmt.Errorf("bar"))
	require.True(t, IsObjectNotFound(err))
	require.True(t, IsUnretriable(err))
}

func TestUnretriable(t *testing.T) {
	err := Unretriable(fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
	require.False(t, IsUnretriable(fmt.Errorf("plain")))
}

func TestSentinelErrorsAreUnretriableCandidates(t *testing.T) {
	wrapped := Unretriable(ErrUnauthorized)
	require.ErrorIs(t, wrapped, ErrUnauthorized)
	require.True(t, IsUnretriable(wrapped))
}
