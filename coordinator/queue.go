package coordinator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/store"
)

// dispatch advances the head of each per-stage wait per spec §4.7.2:
// Downloaded -> EncodeTask, Encoded -> UploadTask. Dispatch order follows
// the active slice's insertion order (FIFO, spec §5).
func (c *Coordinator) dispatch(ctx context.Context) {
	for i := range c.active {
		j := &c.active[i]
		switch j.Stage {
		case job.Downloaded:
			j.Stage = job.Encoding
			if err := c.store.UpdateStage(ctx, j.JobID, j.Stage); err != nil {
				store.LogAndIgnore("", "update_stage", err)
				c.metrics.PersistenceErrorsTotal.WithLabelValues("update_stage").Inc()
			}
			c.enterStage(j.JobID, time.Now())
			c.encodeTasks <- job.EncodeTask{JobID: j.JobID, Directory: j.Directory, Preset: j.Preset}
		case job.Encoded:
			j.Stage = job.Uploading
			if err := c.store.UpdateStage(ctx, j.JobID, j.Stage); err != nil {
				store.LogAndIgnore("", "update_stage", err)
				c.metrics.PersistenceErrorsTotal.WithLabelValues("update_stage").Inc()
			}
			c.enterStage(j.JobID, time.Now())
			c.uploadTasks <- job.UploadTask{JobID: j.JobID, Directory: j.Directory, Destination: uploadDestination(*j)}
		}
	}
}

// uploadDestination derives the upload-destination filename from the job
// directory's base name (spec §4.6: "an output-filename derived from the
// job directory name").
func uploadDestination(j job.Job) string {
	return filepath.Base(j.Directory) + ".mp4"
}

// reconcile drains one CommEvent per tick (spec §4.7.3): edits the job's
// status view, applies any stage transition, and archives terminal jobs.
func (c *Coordinator) reconcile(ctx context.Context) {
	select {
	case ev, ok := <-c.comm:
		if !ok {
			return
		}
		c.applyCommEvent(ctx, ev)
	default:
	}
}

func (c *Coordinator) applyCommEvent(ctx context.Context, ev job.CommEvent) {
	idx, ok := c.findActive(ev.JobID)
	if !ok {
		return
	}
	j := &c.active[idx]

	if ev.Transition != nil {
		if !job.ValidTransition(j.Stage, *ev.Transition) {
			return
		}
		c.leaveStage(j.JobID, j.Stage, time.Now())
		j.Stage = *ev.Transition
		c.enterStage(j.JobID, time.Now())
		if err := c.store.UpdateStage(ctx, j.JobID, j.Stage); err != nil {
			store.LogAndIgnore("", "update_stage", err)
			c.metrics.PersistenceErrorsTotal.WithLabelValues("update_stage").Inc()
		}
	}

	c.editStatus(ctx, *j, ev.Message)

	if j.Stage.Terminal() {
		c.archive(ctx, idx)
	}
}

// cancel matches a CancelRequest by (channel_id, response_id) and, if the
// job is in Downloading, creates the sentinel cancel file the torrent
// helper polls for (spec §4.7.4).
func (c *Coordinator) cancel() {
	select {
	case req, ok := <-c.cancels:
		if !ok {
			return
		}
		c.applyCancel(req)
	default:
	}
}

func (c *Coordinator) applyCancel(req job.CancelRequest) {
	idx, ok := c.findActiveByResponse(req.ChannelID, req.ResponseID)
	if !ok {
		return
	}
	j := c.active[idx]
	if j.Stage != job.Downloading {
		return
	}
	if err := writeCancelSentinel(j); err != nil {
		log.LogNoRequestID("coordinator: writing cancel sentinel failed", "job_id", j.JobID, "err", err)
	}
}

// archive marks a terminal job archived and removes it from the active
// queue (spec §4.7.3, §4.8).
func (c *Coordinator) archive(ctx context.Context, idx int) {
	j := c.active[idx]
	j.Archived = true
	if err := c.store.ArchiveJob(ctx, j.JobID); err != nil {
		store.LogAndIgnore("", "archive_job", err)
		c.metrics.PersistenceErrorsTotal.WithLabelValues("archive_job").Inc()
	}
	delete(c.stageEnteredAt, j.JobID)
	c.active = append(c.active[:idx], c.active[idx+1:]...)
}
