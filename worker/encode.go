package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/relayforge/mediaforge/envstore"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/metrics"
	"github.com/relayforge/mediaforge/protocol"
	"github.com/relayforge/mediaforge/subprocess"
)

// EncodeWorker runs the one- or two-pass encode pipeline of spec §4.5.
type EncodeWorker struct {
	env     *envstore.Store
	comm    chan<- job.CommEvent
	metrics *metrics.Metrics
}

func NewEncodeWorker(env *envstore.Store, comm chan<- job.CommEvent, m *metrics.Metrics) *EncodeWorker {
	return &EncodeWorker{env: env, comm: comm, metrics: m}
}

func (w *EncodeWorker) Run(ctx context.Context, tasks <-chan job.EncodeTask) {
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

func (w *EncodeWorker) process(ctx context.Context, task job.EncodeTask) {
	pnmpegPath, err := w.env.EnvValue(envstore.EnvPNMpegPath)
	if err != nil || pnmpegPath == "" {
		log.LogNoRequestID("encode worker: pnmpeg path unavailable", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, EncodeFail, job.Failed)
		return
	}
	placeholder := job.Job{Directory: task.Directory}

	if !w.pass1(ctx, pnmpegPath, placeholder, task) {
		return
	}

	if !task.Preset.HasConcat() {
		if err := os.Rename(placeholder.OutputNoConcatPath(), placeholder.OutputPath()); err != nil {
			log.LogNoRequestID("encode worker: promoting pass-1 output failed", "job_id", task.JobID, "err", err)
			w.comm <- job.Transition(task.JobID, EncodeFail, job.Failed)
			return
		}
		w.comm <- job.Transition(task.JobID, EncodeDone, job.Encoded)
		return
	}

	w.pass2(ctx, pnmpegPath, placeholder, task)
}

func (w *EncodeWorker) pass1(ctx context.Context, pnmpegPath string, placeholder job.Job, task job.EncodeTask) bool {
	key := job.NewNegotiationKey("PNmpeg")
	session := protocol.NewSession(negotiationSelf(), 1)

	args := []string{
		"--input", placeholder.InputPath(),
		"--output", placeholder.OutputNoConcatPath(),
		"--ass", placeholder.SubtitlePath(),
		task.Preset.Kind.Flag(),
	}
	args = append(args, subprocess.NegotiationArgs(key, "PNencdeworker", 1)...)

	totalPasses := 1
	if task.Preset.HasConcat() {
		totalPasses = 2
	}

	failed := false
	sawTerminal, err := subprocess.Run(ctx, session, pnmpegPath, args, w.metrics.ProtocolParseErrorsTotal, func(f subprocess.Frame) error {
		switch f.Status {
		case subprocess.StatusProgress:
			w.comm <- job.Progress(task.JobID, formatEncodeProgress(f.Payload, 1, totalPasses))
		case subprocess.StatusFail:
			failed = true
			w.comm <- job.Transition(task.JobID, EncodeFail, job.Failed)
		}
		return nil
	})
	if failed {
		return false
	}
	if err != nil || !sawTerminal {
		log.LogNoRequestID("encode worker: pass 1 failed", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, EncodeFail, job.Failed)
		return false
	}
	return true
}

func (w *EncodeWorker) pass2(ctx context.Context, pnmpegPath string, placeholder job.Job, task job.EncodeTask) {
	key := job.NewNegotiationKey("PNmpegC")
	session := protocol.NewSession(negotiationSelf(), 1)

	args := []string{
		"--input", placeholder.OutputNoConcatPath(),
		"--output", placeholder.OutputPath(),
		"--subinput", placeholder.ConcatPath(),
		"--concat",
	}
	args = append(args, subprocess.NegotiationArgs(key, "PNencdeworker", 1)...)

	failed := false
	done := false
	sawTerminal, err := subprocess.Run(ctx, session, pnmpegPath, args, w.metrics.ProtocolParseErrorsTotal, func(f subprocess.Frame) error {
		switch f.Status {
		case subprocess.StatusProgress:
			w.comm <- job.Progress(task.JobID, formatEncodeProgress(f.Payload, 2, 2))
		case subprocess.StatusDone:
			done = true
			w.comm <- job.Transition(task.JobID, EncodeDone, job.Encoded)
		case subprocess.StatusFail:
			failed = true
			w.comm <- job.Transition(task.JobID, EncodeFail, job.Failed)
		}
		return nil
	})
	if failed || done {
		return
	}
	if err != nil || !sawTerminal {
		log.LogNoRequestID("encode worker: pass 2 failed", "job_id", task.JobID, "err", err)
		w.comm <- job.Transition(task.JobID, EncodeFail, job.Failed)
	}
}

// formatEncodeProgress renders a "[fps, frame, total_frames, bitrate]"
// progress tuple (spec §4.5) as human-readable phase/frame/bitrate text.
func formatEncodeProgress(payload string, phase, totalPhases int) string {
	parts := splitTuple(payload, 4)
	if parts == nil {
		return EncodeProg
	}
	fps, frame, totalFrames, bitrate := parts[0], parts[1], parts[2], parts[3]
	return fmt.Sprintf("%s (%d/%d) frame %s/%s, %s fps, %s kbit/s", EncodeProg, phase, totalPhases, frame, totalFrames, fps, bitrate)
}
