package coordinator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/relayforge/mediaforge/config"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/requestsource"
	"github.com/relayforge/mediaforge/store"
)

// admit performs the non-blocking receive and admission check of spec
// §4.7.1. At most one command is admitted per tick.
func (c *Coordinator) admit(ctx context.Context) {
	select {
	case cmd, ok := <-c.commands:
		if !ok {
			return
		}
		c.admitCommand(ctx, cmd)
	default:
	}
}

func (c *Coordinator) admitCommand(ctx context.Context, cmd job.Command) {
	if len(c.active) >= config.MaxJobsInFlight {
		c.metrics.JobsDeclinedTotal.Inc()
		if err := requestsource.DeclineNotice(ctx, c.gateway, cmd.ChannelID, requestsource.QueueTooLong); err != nil {
			log.LogNoRequestID("coordinator: sending decline notice failed", "err", err)
		}
		return
	}

	j := job.Job{
		JobID:       c.nextJobID(),
		Author:      cmd.Author,
		ChannelID:   cmd.ChannelID,
		RequestedAt: nowUnix(),
		Type:        job.Encode,
		Preset:      cmd.Preset,
		Torrent:     cmd.Torrent,
		Stage:       job.Queued,
	}
	j.Directory = c.jobRoot(j)

	responseID, err := c.gateway.SendStatusView(ctx, j.ChannelID, requestsource.BuildStatusView(j, requestsource.Queued))
	if err != nil {
		log.LogNoRequestID("coordinator: sending initial status view failed", "job_id", j.JobID, "err", err)
	}
	j.ResponseID = responseID

	if err := c.prepareJobDirectory(j, cmd); err != nil {
		log.LogNoRequestID("coordinator: preparing job directory failed, dropping job", "job_id", j.JobID, "err", err)
		return
	}

	j.Stage = job.Downloading
	if err := c.store.InsertJob(ctx, j); err != nil {
		store.LogAndIgnore("", "insert_job", err)
		c.metrics.PersistenceErrorsTotal.WithLabelValues("insert_job").Inc()
	}

	c.active = append(c.active, j)
	c.metrics.JobsAcceptedTotal.Inc()
	c.enterStage(j.JobID, time.Now())

	c.downloadTasks <- job.DownloadTask{JobID: j.JobID, Directory: j.Directory, Torrent: j.Torrent, CancelFile: cancelSentinelPath(j)}
}

// prepareJobDirectory creates the directory skeleton, writes the subtitle
// attachment, and copies the preset's canned concat intro if present (spec
// §4.7.1). Any failure here is fatal at admission (spec §7).
func (c *Coordinator) prepareJobDirectory(j job.Job, cmd job.Command) error {
	if err := prepareDirectories(j); err != nil {
		return fmt.Errorf("creating directory skeleton: %w", err)
	}

	subtitle, err := c.fetch.FetchSubtitle(context.Background(), cmd.SubtitleURL)
	if err != nil {
		return fmt.Errorf("fetching subtitle attachment: %w", err)
	}
	if err := os.WriteFile(j.SubtitlePath(), subtitle, 0644); err != nil {
		return fmt.Errorf("writing subtitle: %w", err)
	}

	if j.Preset.HasConcat() {
		src := c.concatSourcePath(*j.Preset.ConcatID)
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("reading canned concat intro %s: %w", src, err)
		}
		if err := os.WriteFile(j.ConcatPath(), data, 0644); err != nil {
			return fmt.Errorf("writing concat intro: %w", err)
		}
	}

	return nil
}
