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

func newMpegEnv(t *testing.T, script string) *envstore.Store {
	t.Helper()
	dir := t.TempDir()
	pnmpeg := filepath.Join(dir, "pnmpeg.sh")
	require.NoError(t, os.WriteFile(pnmpeg, []byte("#!/bin/sh\n"+script), 0755))

	lines := make([]string, envstore.EnvPNP2PPath+1)
	for i := range lines {
		lines[i] = "unused"
	}
	lines[envstore.EnvPNMpegPath] = pnmpeg
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.pandora"), []byte(content), 0644))
	return envstore.New(dir)
}

func TestEncodeWorkerWithoutConcatPromotesOutput(t *testing.T) {
	env := newMpegEnv(t, `echo 'PNprotocol:pnmpeg@dev@1:coordinatord@dev@1:K1'
echo 'K1:0:30/100/1000/5000'
echo 'K1:1:done'`)

	dir := t.TempDir()
	placeholder := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(placeholder.WorkDir(), 0755))
	require.NoError(t, os.WriteFile(placeholder.OutputNoConcatPath(), []byte("video"), 0644))

	comm := make(chan job.CommEvent, 10)
	w := NewEncodeWorker(env, comm, metrics.New("test"))

	task := job.EncodeTask{JobID: 1, Directory: dir, Preset: job.Preset{Kind: job.PresetStandard}}
	w.process(context.Background(), task)

	events := drain(t, comm, 2, 2*time.Second)
	require.Nil(t, events[0].Transition)
	require.NotNil(t, events[1].Transition)
	require.Equal(t, job.Encoded, *events[1].Transition)

	_, err := os.Stat(placeholder.OutputPath())
	require.NoError(t, err)
}

func TestEncodeWorkerWithConcatRunsPass2(t *testing.T) {
	pass := 0
	_ = pass
	env := newMpegEnv(t, `
if [ "$5" = "--ass" ]; then
  echo 'PNprotocol:pnmpeg@dev@1:coordinatord@dev@1:K1'
  echo 'K1:0:30/100/1000/5000'
  echo 'K1:1:done'
else
  echo 'PNprotocol:pnmpeg@dev@1:coordinatord@dev@1:K2'
  echo 'K2:0:30/100/1000/5000'
  echo 'K2:1:done'
fi`)

	dir := t.TempDir()
	placeholder := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(placeholder.WorkDir(), 0755))
	require.NoError(t, os.MkdirAll(placeholder.ContentsDir(), 0755))

	comm := make(chan job.CommEvent, 10)
	w := NewEncodeWorker(env, comm, metrics.New("test"))

	concat := 3
	task := job.EncodeTask{JobID: 2, Directory: dir, Preset: job.Preset{Kind: job.PresetGpu, ConcatID: &concat}}
	w.process(context.Background(), task)

	events := drain(t, comm, 3, 2*time.Second)
	last := events[len(events)-1]
	require.NotNil(t, last.Transition)
	require.Equal(t, job.Encoded, *last.Transition)
}

func TestEncodeWorkerPass1FailureStopsBeforePass2(t *testing.T) {
	env := newMpegEnv(t, `echo 'PNprotocol:pnmpeg@dev@1:coordinatord@dev@1:K1'
echo 'K1:2:bad input'`)

	dir := t.TempDir()
	placeholder := job.Job{Directory: dir}
	require.NoError(t, os.MkdirAll(placeholder.WorkDir(), 0755))

	comm := make(chan job.CommEvent, 10)
	w := NewEncodeWorker(env, comm, metrics.New("test"))

	concat := 1
	task := job.EncodeTask{JobID: 3, Directory: dir, Preset: job.Preset{Kind: job.PresetPseudoLossless, ConcatID: &concat}}
	w.process(context.Background(), task)

	events := drain(t, comm, 1, 2*time.Second)
	require.NotNil(t, events[0].Transition)
	require.Equal(t, job.Failed, *events[0].Transition)
}
