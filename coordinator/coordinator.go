// Package coordinator implements the main job-orchestration loop of spec
// §4.7: admission, directory layout, preset dispatch, the stage queue, and
// reconciliation of worker CommEvents back to the chat surface. It is
// grounded on the original implementation's pn_worker main loop
// (pnworker/core.rs), ported from an async select-loop into Go's
// time.Ticker-driven poll the teacher's own long-lived services use.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relayforge/mediaforge/config"
	"github.com/relayforge/mediaforge/envstore"
	"github.com/relayforge/mediaforge/fetchclient"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/metrics"
	"github.com/relayforge/mediaforge/requestsource"
	"github.com/relayforge/mediaforge/store"
)

// Coordinator owns the active job queue exclusively (spec §9 "avoid shared
// mutable state"): every other task communicates with it only by value
// over channels.
type Coordinator struct {
	store   *store.Store
	env     *envstore.Store
	gateway requestsource.Gateway
	fetch   *fetchclient.Client
	metrics *metrics.Metrics

	dataDir string

	commands chan job.Command
	cancels  chan job.CancelRequest
	comm     chan job.CommEvent

	downloadTasks chan job.DownloadTask
	encodeTasks   chan job.EncodeTask
	uploadTasks   chan job.UploadTask

	active []job.Job
	jobSeq int64

	// stageEnteredAt tracks when each active job's current stage began, so
	// dispatch/reconcile can observe StageDurationSec on the way out of a
	// stage. It is in-memory only: a restart loses mid-stage timing the same
	// way it loses everything else not captured by the jobs table.
	stageEnteredAt map[int64]time.Time
}

// New builds a Coordinator with its bounded channels sized per spec §5.
func New(st *store.Store, env *envstore.Store, gw requestsource.Gateway, fc *fetchclient.Client, m *metrics.Metrics, dataDir string) *Coordinator {
	return &Coordinator{
		store:          st,
		env:            env,
		gateway:        gw,
		fetch:          fc,
		metrics:        m,
		dataDir:        dataDir,
		commands:       make(chan job.Command, config.JobCommandChannelCapacity),
		cancels:        make(chan job.CancelRequest, config.JobCommandChannelCapacity),
		comm:           make(chan job.CommEvent, config.CommEventChannelCapacity),
		downloadTasks:  make(chan job.DownloadTask, config.StageTaskChannelCapacity),
		encodeTasks:    make(chan job.EncodeTask, config.StageTaskChannelCapacity),
		uploadTasks:    make(chan job.UploadTask, config.StageTaskChannelCapacity),
		stageEnteredAt: make(map[int64]time.Time),
	}
}

// enterStage records now as the start of jobID's current stage.
func (c *Coordinator) enterStage(jobID int64, now time.Time) {
	c.stageEnteredAt[jobID] = now
}

// leaveStage observes how long jobID spent in stage, labeled by stage. It
// leaves the bookkeeping entry in place; archive deletes it once the job
// leaves active tracking.
func (c *Coordinator) leaveStage(jobID int64, stage job.Stage, now time.Time) {
	entered, ok := c.stageEnteredAt[jobID]
	if !ok {
		return
	}
	c.metrics.StageDurationSec.WithLabelValues(stage.String()).Observe(now.Sub(entered).Seconds())
}

// Commands returns the bounded channel the request-source adapter sends
// job.Command values on.
func (c *Coordinator) Commands() chan<- job.Command { return c.commands }

// Cancels returns the bounded channel cancellation requests arrive on.
func (c *Coordinator) Cancels() chan<- job.CancelRequest { return c.cancels }

// CommEvents returns the channel every stage worker publishes progress and
// outcome events onto.
func (c *Coordinator) CommEvents() chan<- job.CommEvent { return c.comm }

// DownloadTasks, EncodeTasks and UploadTasks are the per-stage channels the
// corresponding worker.Run loop consumes from.
func (c *Coordinator) DownloadTasks() <-chan job.DownloadTask { return c.downloadTasks }
func (c *Coordinator) EncodeTasks() <-chan job.EncodeTask     { return c.encodeTasks }
func (c *Coordinator) UploadTasks() <-chan job.UploadTask     { return c.uploadTasks }

// Restore loads the non-archived jobs from the store into the active queue
// at startup, so a restart resumes where it left off (spec §4.8).
func (c *Coordinator) Restore(ctx context.Context) error {
	jobs, err := c.store.GetActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: restoring active jobs: %w", err)
	}
	c.active = jobs
	for _, j := range c.active {
		if j.JobID > c.jobSeq {
			c.jobSeq = j.JobID
		}
	}
	return nil
}

// Run drives the main loop at the spec §4.7 tick granularity until ctx is
// cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(config.ReconciliationTickMillis) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	c.admit(ctx)
	c.cancel()
	c.dispatch(ctx)
	c.reconcile(ctx)
	c.metrics.JobsInFlight.Set(float64(len(c.active)))
}

func nowUnix() int64 {
	return config.Clock.GetTime().Unix()
}

func (c *Coordinator) nextJobID() int64 {
	c.jobSeq++
	return c.jobSeq
}

func (c *Coordinator) findActive(jobID int64) (int, bool) {
	for i := range c.active {
		if c.active[i].JobID == jobID {
			return i, true
		}
	}
	return -1, false
}

func (c *Coordinator) findActiveByResponse(channelID, responseID int64) (int, bool) {
	for i := range c.active {
		if c.active[i].ChannelID == channelID && c.active[i].ResponseID == responseID {
			return i, true
		}
	}
	return -1, false
}

// jobRoot returns the per-job directory, laid out as
// DB/<author>-<job_id>-<requested_at> (spec §3).
func (c *Coordinator) jobRoot(j job.Job) string {
	return job.DirectoryFor(c.dataDir, j.Author, j.JobID, j.RequestedAt)
}

// concatSourcePath finds the canned intro file for a preset's concat id
// under DB/concat/ (spec §4.7, §6).
func (c *Coordinator) concatSourcePath(concatID int) string {
	return filepath.Join(c.dataDir, config.ConcatDirName, fmt.Sprintf("%d.mp4", concatID))
}

// cancelSentinelName is the file pnp2p polls for under the job's torrent
// directory (spec §4.7.4, §6 "--cancelfile <path>").
const cancelSentinelName = "CANCEL"

func cancelSentinelPath(j job.Job) string {
	return filepath.Join(j.TorrentDir(), cancelSentinelName)
}

func writeCancelSentinel(j job.Job) error {
	return os.WriteFile(cancelSentinelPath(j), nil, 0644)
}

func prepareDirectories(j job.Job) error {
	if err := os.MkdirAll(j.ContentsDir(), 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(j.TorrentDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(j.WorkDir(), 0755)
}

func (c *Coordinator) editStatus(ctx context.Context, j job.Job, message string) {
	if j.ResponseID == 0 {
		return
	}
	view := requestsource.BuildStatusView(j, message)
	if err := c.gateway.EditStatusView(ctx, j.ChannelID, j.ResponseID, view); err != nil {
		log.LogNoRequestID("coordinator: editing status view failed", "job_id", j.JobID, "err", err)
	}
}
