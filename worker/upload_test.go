package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relayforge/mediaforge/envstore"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/metrics"
	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
	"github.com/relayforge/mediaforge/wire"
	"github.com/stretchr/testify/require"
)

func newCurlEnv(t *testing.T, script string) *envstore.Store {
	t.Helper()
	dir := t.TempDir()
	pncurl := filepath.Join(dir, "pncurl.sh")
	require.NoError(t, os.WriteFile(pncurl, []byte("#!/bin/sh\n"+script), 0755))

	lines := make([]string, envstore.EnvPNP2PPath+1)
	for i := range lines {
		lines[i] = "unused"
	}
	lines[envstore.EnvPNCurlPath] = pncurl
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.pandora"), []byte(content), 0644))
	return envstore.New(dir)
}

func TestUploadWorkerSuccessUnescapesURL(t *testing.T) {
	env := newCurlEnv(t, `echo 'PNprotocol:pncurl@dev@1:coordinatord@dev@1:K1'
echo 'K1:0:1048576/2097152'
echo 'K1:1:https?PNcolon??PNslash??PNslash?example.com?PNslash?f.mp4?PNquestion?token=abc'`)

	dir := t.TempDir()
	placeholder := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(placeholder.WorkDir(), 0755))

	comm := make(chan job.CommEvent, 10)
	w := NewUploadWorker(env, comm, metrics.New("test"))

	task := job.UploadTask{JobID: 1, Directory: dir, Destination: "1-1-1700000000.mp4"}
	w.process(context.Background(), task)

	events := drain(t, comm, 2, 2*time.Second)
	require.NotNil(t, events[1].Transition)
	require.Equal(t, job.Uploaded, *events[1].Transition)
	require.Contains(t, events[1].Message, "https://example.com/f.mp4?PNquestion?token=abc")
}

// TestUploadDoneFrameEscapeRoundTrip pins the producer/consumer escape
// contract: a pnfetch-style Subordinate builds its done frame through
// Subordinate.Message exactly the way cmd/pnfetch does, and one UnescapeURL
// pass (the only unescape the upload worker applies) must restore every
// frame delimiter while the link's '?' stays as the ?PNquestion? token. A
// producer that pre-escapes its payload before calling Message/Frame breaks
// this test.
func TestUploadDoneFrameEscapeRoundTrip(t *testing.T) {
	link := "https://example.com/f.mp4?token=abc"

	self := protocol.ToolInfo{Tool: "pncurl", Build: "dev", Version: 1}
	sub, handshake, err := protocol.NewSubordinate(self, "PNuloadworker", 1, "K1")
	require.NoError(t, err)

	line, err := sub.Message(subprocess.StatusDone, link)
	require.NoError(t, err)

	session := protocol.NewSession(negotiationSelf(), 1)
	key, err := session.Negotiate(handshake)
	require.NoError(t, err)

	frame, err := subprocess.ParseFrame(session, line)
	require.NoError(t, err)
	require.Equal(t, key, frame.Key)
	require.Equal(t, subprocess.StatusDone, frame.Status)
	require.Equal(t, "https://example.com/f.mp4?PNquestion?token=abc", wire.UnescapeURL(frame.Payload))
}

func TestUploadWorkerFailure(t *testing.T) {
	env := newCurlEnv(t, `echo 'PNprotocol:pncurl@dev@1:coordinatord@dev@1:K1'
echo 'K1:2:network error'`)

	dir := t.TempDir()
	placeholder := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(placeholder.WorkDir(), 0755))

	comm := make(chan job.CommEvent, 10)
	w := NewUploadWorker(env, comm, metrics.New("test"))

	task := job.UploadTask{JobID: 2, Directory: dir, Destination: "2-1-1700000000.mp4"}
	w.process(context.Background(), task)

	events := drain(t, comm, 1, 2*time.Second)
	require.NotNil(t, events[0].Transition)
	require.Equal(t, job.Failed, *events[0].Transition)
}
