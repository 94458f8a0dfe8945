package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/relayforge/mediaforge/envstore"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/metrics"
	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
	"github.com/relayforge/mediaforge/wire"
)

// UploadWorker runs the cloud-upload pipeline of spec §4.6.
type UploadWorker struct {
	env     *envstore.Store
	comm    chan<- job.CommEvent
	metrics *metrics.Metrics
}

func NewUploadWorker(env *envstore.Store, comm chan<- job.CommEvent, m *metrics.Metrics) *UploadWorker {
	return &UploadWorker{env: env, comm: comm, metrics: m}
}

func (w *UploadWorker) Run(ctx context.Context, tasks <-chan job.UploadTask) {
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

func (w *UploadWorker) process(ctx context.Context, task job.UploadTask) {
	pncurlPath, err := w.env.EnvValue(envstore.EnvPNCurlPath)
	if err != nil || pncurlPath == "" {
		log.LogNoRequestID("upload worker: pncurl path unavailable", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, fmt.Sprintf("%s %s", UploadFail, task.Directory), job.Failed)
		return
	}

	placeholder := job.Job{Directory: task.Directory}
	localPath := placeholder.OutputPath()

	key := job.NewNegotiationKey("PNcurlG")
	session := protocol.NewSession(negotiationSelf(), 1)

	args := []string{"--link", localPath, "--opcode", task.Destination, "--drive", "--env", "env.pandora"}
	args = append(args, subprocess.NegotiationArgs(key, "PNuloadworker", 1)...)

	start := time.Now()
	failed := false
	done := false
	sawTerminal, err := subprocess.Run(ctx, session, pncurlPath, args, w.metrics.ProtocolParseErrorsTotal, func(f subprocess.Frame) error {
		switch f.Status {
		case subprocess.StatusProgress:
			w.comm <- job.Progress(task.JobID, formatUploadProgress(f.Payload))
		case subprocess.StatusDone:
			done = true
			w.metrics.UploadClient.RequestDuration.WithLabelValues(task.Destination).Observe(time.Since(start).Seconds())
			url := wire.UnescapeURL(f.Payload)
			w.comm <- job.Transition(task.JobID, fmt.Sprintf("%s %s", UploadDone, url), job.Uploaded)
		case subprocess.StatusFail:
			failed = true
			w.metrics.UploadClient.FailureCount.WithLabelValues(task.Destination, subprocess.StatusFail).Inc()
			w.comm <- job.Transition(task.JobID, fmt.Sprintf("%s %s", UploadFail, localPath), job.Failed)
		}
		return nil
	})
	if failed || done {
		return
	}
	if err != nil || !sawTerminal {
		w.metrics.UploadClient.FailureCount.WithLabelValues(task.Destination, "no_terminal_frame").Inc()
		log.LogNoRequestID("upload worker: upload failed", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, fmt.Sprintf("%s %s", UploadFail, localPath), job.Failed)
	}
}

// formatUploadProgress renders a "[sent_bytes, total_bytes]" progress
// tuple (spec §4.6) with byte counts rounded to MiB.
func formatUploadProgress(payload string) string {
	parts := splitTuple(payload, 2)
	if parts == nil {
		return UploadProg
	}
	return fmt.Sprintf("%s %dMiB/%dMiB", UploadProg, bytesToMiB(parts[0]), bytesToMiB(parts[1]))
}
