package requestsource

import (
	"fmt"

	"github.com/relayforge/mediaforge/job"
)

// Status text constants, translated from the original implementation's
// Turkish Discord-embed copy (pnworker/messages.rs) into plain English.
const (
	QueueTooLong = "there is currently a short queue on the toolchain; please try again later."
	Queued       = "your request has been received."
	JobCancelled = "the job was cancelled."
)

// stageColor mirrors create_job_embed's per-stage Colour match (spec
// §4.9 "colored per stage").
func stageColor(s job.Stage) StatusColor {
	switch s {
	case job.Failed, job.Declined, job.Cancelled:
		return ColorError
	case job.Uploaded:
		return ColorDone
	case job.Queued:
		return ColorNeutral
	default:
		return ColorInProgress
	}
}

// presetText renders a Preset's kind plus intro-presence into the same
// "<scheme> | <with/without intro>" shape as the original embed's
// preset_text match.
func presetText(p job.Preset) string {
	intro := "no intro"
	if p.HasConcat() {
		intro = "with intro"
	}
	return fmt.Sprintf("%s | %s", p.Kind.String(), intro)
}

// BuildStatusView renders the chat status view for j with the given
// progress message, the same fields as the original create_job_embed:
// job id, author mention, stage label, preset description, torrent link,
// progress text.
func BuildStatusView(j job.Job, message string) StatusView {
	return StatusView{
		Title:         "Encode job",
		Color:         stageColor(j.Stage),
		JobID:         j.JobID,
		AuthorMention: fmt.Sprintf("<@%d>", j.Author),
		StageLabel:    j.Stage.String(),
		PresetText:    presetText(j.Preset),
		TorrentLink:   j.Torrent.Value(),
		Progress:      message,
	}
}
