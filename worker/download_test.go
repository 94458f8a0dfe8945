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
	"github.com/stretchr/testify/require"
)

func newScriptEnv(t *testing.T, pncurlScript, pnp2pScript string) *envstore.Store {
	t.Helper()
	dir := t.TempDir()

	writeScript := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
		return path
	}

	pncurl := writeScript("pncurl.sh", pncurlScript)
	pnp2p := writeScript("pnp2p.sh", pnp2pScript)

	lines := make([]string, envstore.EnvPNP2PPath+1)
	for i := range lines {
		lines[i] = "unused"
	}
	lines[envstore.EnvPNCurlPath] = pncurl
	lines[envstore.EnvPNMpegPath] = pncurl // unused by download tests
	lines[envstore.EnvPNP2PPath] = pnp2p

	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.pandora"), []byte(content), 0644))
	return envstore.New(dir)
}

func drain(t *testing.T, comm chan job.CommEvent, n int, timeout time.Duration) []job.CommEvent {
	t.Helper()
	events := make([]job.CommEvent, 0, n)
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case e := <-comm:
			events = append(events, e)
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d: %+v", n, len(events), events)
		}
	}
	return events
}

func TestDownloadWorkerHappyPath(t *testing.T) {
	env := newScriptEnv(t,
		`echo 'PNprotocol:pncurl@dev@1:coordinatord@dev@1:K1'; echo 'K1:1:done'`,
		`echo 'PNprotocol:pnp2p@dev@1:coordinatord@dev@1:K2'
echo 'K2:0:50/104857600/209715200'
echo 'K2:1:done'`,
	)

	dir := t.TempDir()
	jobDir := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(jobDir.TorrentDir(), 0755))
	require.NoError(t, os.MkdirAll(jobDir.ContentsDir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir.TorrentDir(), "some.video.mkv"), []byte("x"), 0644))

	comm := make(chan job.CommEvent, 10)
	w := NewDownloadWorker(env, comm, metrics.New("test"))

	task := job.DownloadTask{JobID: 1, Directory: dir, Torrent: job.LinkRef{URL: "https://example.com/x.torrent"}}
	w.process(context.Background(), task)

	events := drain(t, comm, 3, 2*time.Second)
	require.Equal(t, CTorrentDone, events[0].Message)
	require.Nil(t, events[0].Transition)
	require.NotNil(t, events[2].Transition)
	require.Equal(t, job.Downloaded, *events[2].Transition)

	_, err := os.Stat(jobDir.InputPath())
	require.NoError(t, err)
}

func TestDownloadWorkerMetadataFetchFailure(t *testing.T) {
	env := newScriptEnv(t,
		`echo 'PNprotocol:pncurl@dev@1:coordinatord@dev@1:K1'; echo 'K1:2:bad link'`,
		`exit 1`,
	)

	dir := t.TempDir()
	comm := make(chan job.CommEvent, 10)
	w := NewDownloadWorker(env, comm, metrics.New("test"))

	task := job.DownloadTask{JobID: 2, Directory: dir, Torrent: job.LinkRef{URL: "https://example.com/x.torrent"}}
	w.process(context.Background(), task)

	events := drain(t, comm, 1, 2*time.Second)
	require.NotNil(t, events[0].Transition)
	require.Equal(t, job.Failed, *events[0].Transition)
}

func TestDownloadWorkerCancellation(t *testing.T) {
	env := newScriptEnv(t,
		`echo 'PNprotocol:pncurl@dev@1:coordinatord@dev@1:K1'; echo 'K1:1:done'`,
		`echo 'PNprotocol:pnp2p@dev@1:coordinatord@dev@1:K2'
echo 'K2:0:10/1/100'
echo 'K2:0:20/2/100'
echo 'K2:0:30/3/100'
echo 'K2:3:cancelled'`,
	)

	dir := t.TempDir()
	jobDir := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(jobDir.TorrentDir(), 0755))
	require.NoError(t, os.MkdirAll(jobDir.ContentsDir(), 0755))

	comm := make(chan job.CommEvent, 10)
	w := NewDownloadWorker(env, comm, metrics.New("test"))

	task := job.DownloadTask{JobID: 3, Directory: dir, Torrent: job.LinkRef{URL: "https://example.com/x.torrent"}}
	w.process(context.Background(), task)

	events := drain(t, comm, 5, 2*time.Second)
	last := events[len(events)-1]
	require.NotNil(t, last.Transition)
	require.Equal(t, job.Cancelled, *last.Transition)
	for _, e := range events[:len(events)-1] {
		if e.Transition != nil {
			require.NotEqual(t, job.Downloaded, *e.Transition)
		}
	}
}
