package subprocess

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/relayforge/mediaforge/protocol"
	"github.com/stretchr/testify/require"
)

func newTestSession() *protocol.Session {
	self := protocol.ToolInfo{Tool: "coordinatord", Build: "test", Version: 1}
	return protocol.NewSession(self, 1)
}

func TestRunParsesProgressThenDoneFrames(t *testing.T) {
	script := `
echo 'PNprotocol:pnfetch@dev@1:coordinatord@test@1:K1'
echo 'K1:0:30/100'
echo 'K1:0:60/100'
echo 'K1:1:finished'
`
	session := newTestSession()

	var frames []Frame
	sawTerminal, err := Run(context.Background(), session, "sh", []string{"-c", script}, nil, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	require.True(t, sawTerminal)
	require.Len(t, frames, 3)
	require.Equal(t, StatusProgress, frames[0].Status)
	require.Equal(t, "30/100", frames[0].Payload)
	require.Equal(t, StatusDone, frames[2].Status)
	require.Equal(t, "finished", frames[2].Payload)
}

func TestRunNonZeroExitWithoutTerminalFrameIsReported(t *testing.T) {
	script := `
echo 'PNprotocol:pnfetch@dev@1:coordinatord@test@1:K1'
echo 'K1:0:10/100'
exit 1
`
	session := newTestSession()

	sawTerminal, err := Run(context.Background(), session, "sh", []string{"-c", script}, nil, func(Frame) error {
		return nil
	})
	require.Error(t, err)
	require.False(t, sawTerminal)
}

func TestRunSkipsMalformedLinesBeforeHandshake(t *testing.T) {
	script := `
echo 'not a handshake line'
echo 'PNprotocol:pnfetch@dev@1:coordinatord@test@1:K1'
echo 'K1:1:done'
`
	session := newTestSession()

	var frames []Frame
	_, err := Run(context.Background(), session, "sh", []string{"-c", script}, nil, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
}

func TestRunCountsSkippedLinesAsParseErrors(t *testing.T) {
	script := `
echo 'not a handshake line'
echo 'PNprotocol:pnfetch@dev@1:coordinatord@test@1:K1'
echo 'also not a frame'
echo 'K1:1:done'
`
	session := newTestSession()
	counter := promauto.With(prometheus.NewRegistry()).NewCounter(prometheus.CounterOpts{Name: "test_parse_errors_total"})

	_, err := Run(context.Background(), session, "sh", []string{"-c", script}, counter, func(Frame) error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(2), testutil.ToFloat64(counter))
}

func TestRunPropagatesHandlerError(t *testing.T) {
	script := `
echo 'PNprotocol:pnfetch@dev@1:coordinatord@test@1:K1'
echo 'K1:0:1/100'
sleep 1
echo 'K1:1:done'
`
	session := newTestSession()

	_, err := Run(context.Background(), session, "sh", []string{"-c", script}, nil, func(Frame) error {
		return context.DeadlineExceeded
	})
	require.Error(t, err)
}
