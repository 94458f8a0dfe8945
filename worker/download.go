package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/relayforge/mediaforge/envstore"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/metrics"
	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
)

const coordinatorTool = "coordinatord"

func negotiationSelf() protocol.ToolInfo {
	return protocol.ToolInfo{Tool: coordinatorTool, Build: "dev", Version: 1}
}

// DownloadWorker runs the two-step fetch-then-torrent pipeline of spec
// §4.4: one task at a time, off its own bounded channel.
type DownloadWorker struct {
	env     *envstore.Store
	comm    chan<- job.CommEvent
	metrics *metrics.Metrics
}

func NewDownloadWorker(env *envstore.Store, comm chan<- job.CommEvent, m *metrics.Metrics) *DownloadWorker {
	return &DownloadWorker{env: env, comm: comm, metrics: m}
}

// Run drains tasks until the channel is closed or ctx is cancelled.
func (w *DownloadWorker) Run(ctx context.Context, tasks <-chan job.DownloadTask) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-tasks:
			if !ok {
				return
			}
			w.process(ctx, task)
		}
	}
}

func (w *DownloadWorker) process(ctx context.Context, task job.DownloadTask) {
	pncurlPath, err := w.env.EnvValue(envstore.EnvPNCurlPath)
	if err != nil || pncurlPath == "" {
		log.LogNoRequestID("download worker: pncurl path unavailable", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, CTorrentFail, job.Failed)
		return
	}
	pnp2pPath, err := w.env.EnvValue(envstore.EnvPNP2PPath)
	if err != nil || pnp2pPath == "" {
		log.LogNoRequestID("download worker: pnp2p path unavailable", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, TorrentFail, job.Failed)
		return
	}

	placeholder := job.Job{Directory: task.Directory}

	if !w.fetchMetadata(ctx, pncurlPath, placeholder.FetchTorrentPath(), task) {
		return
	}
	w.downloadTorrent(ctx, pnp2pPath, placeholder, task)
}

// fetchMetadata runs the HTTP-fetch helper. Returns true if the torrent
// phase should proceed.
func (w *DownloadWorker) fetchMetadata(ctx context.Context, pncurlPath, fetchPath string, task job.DownloadTask) bool {
	key := job.NewNegotiationKey("PNcurlT")
	session := protocol.NewSession(negotiationSelf(), 1)

	args := []string{"--link", task.Torrent.Value(), "--opcode", fetchPath}
	args = append(args, subprocess.NegotiationArgs(key, "PNdloadworker", 1)...)

	failed := false
	sawTerminal, err := subprocess.Run(ctx, session, pncurlPath, args, w.metrics.ProtocolParseErrorsTotal, func(f subprocess.Frame) error {
		switch f.Status {
		case subprocess.StatusDone:
			w.comm <- job.Progress(task.JobID, CTorrentDone)
		case subprocess.StatusFail:
			failed = true
			w.comm <- job.Transition(task.JobID, CTorrentFail, job.Failed)
		}
		return nil
	})
	if failed {
		return false
	}
	if err != nil || !sawTerminal {
		log.LogNoRequestID("download worker: metadata fetch failed", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, CTorrentFail, job.Failed)
		return false
	}
	return true
}

// downloadTorrent runs the BitTorrent helper and, on success, renames the
// produced file to input.mkv.
func (w *DownloadWorker) downloadTorrent(ctx context.Context, pnp2pPath string, placeholder job.Job, task job.DownloadTask) {
	key := job.NewNegotiationKey("PNp2pT")
	session := protocol.NewSession(negotiationSelf(), 1)

	args := []string{"--opcode", placeholder.FetchTorrentPath(), "--save", placeholder.TorrentDir()}
	args = append(args, task.Torrent.Arg())
	if task.CancelFile != "" {
		args = append(args, "--cancelfile", task.CancelFile)
	}
	args = append(args, subprocess.NegotiationArgs(key, "PNdloadworker", 1)...)

	failed := false
	done := false
	sawTerminal, err := subprocess.Run(ctx, session, pnp2pPath, args, w.metrics.ProtocolParseErrorsTotal, func(f subprocess.Frame) error {
		switch f.Status {
		case subprocess.StatusProgress:
			w.comm <- job.Progress(task.JobID, formatTorrentProgress(f.Payload))
		case subprocess.StatusDone:
			done = true
			if renameErr := settleDownloadedFile(placeholder); renameErr != nil {
				log.LogNoRequestID("download worker: settling downloaded file failed", "job_id", task.JobID, "err", renameErr)
				failed = true
				w.comm <- job.Transition(task.JobID, TorrentFail, job.Failed)
				return nil
			}
			w.comm <- job.Transition(task.JobID, TorrentDone, job.Downloaded)
		case subprocess.StatusCancelled:
			done = true
			w.comm <- job.Transition(task.JobID, TorrentCancelled, job.Cancelled)
		case subprocess.StatusFail:
			failed = true
			w.comm <- job.Transition(task.JobID, TorrentFail, job.Failed)
		}
		return nil
	})
	if failed || done {
		return
	}
	if err != nil || !sawTerminal {
		log.LogNoRequestID("download worker: torrent transfer failed", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, TorrentFail, job.Failed)
	}
}

// formatTorrentProgress renders a "[percent, downloaded, total]" progress
// tuple (spec §4.4) with byte counts rounded to MiB.
func formatTorrentProgress(payload string) string {
	parts := splitTuple(payload, 3)
	if parts == nil {
		return TorrentProg
	}
	percent, downloaded, total := parts[0], bytesToMiB(parts[1]), bytesToMiB(parts[2])
	return fmt.Sprintf("%s %s%% %dMiB/%dMiB", TorrentProg, percent, downloaded, total)
}

// settleRetryInterval and settleRetries bound the brief retry window for a
// destination file the torrent helper hasn't finished materializing yet
// when its "done" frame arrives (spec §4.4 edge case).
const (
	settleRetryInterval = 200 * time.Millisecond
	settleRetries       = 5
)

// settleDownloadedFile finds the single produced file inside the torrent
// directory and renames it to input.mkv. If multiple files exist, the
// first entry of a sorted directory listing is selected, per spec §4.4.
func settleDownloadedFile(placeholder job.Job) error {
	dir := placeholder.TorrentDir()
	var name string
	var err error
	for attempt := 0; attempt < settleRetries; attempt++ {
		name, err = firstSortedEntry(dir)
		if err == nil {
			break
		}
		time.Sleep(settleRetryInterval)
	}
	if err != nil {
		return fmt.Errorf("worker: no produced file found in %s: %w", dir, err)
	}
	return os.Rename(filepath.Join(dir, name), placeholder.InputPath())
}

func firstSortedEntry(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("worker: %s is empty", dir)
	}
	sort.Strings(names)
	return names[0], nil
}
