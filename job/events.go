package job

// Command is what the request-source adapter produces from an authorized
// "!enc"/"/encode" chat event (spec §4.9) and feeds into the coordinator's
// bounded job-command channel (capacity 5, spec §5).
type Command struct {
	Author       int64
	ChannelID    int64
	Torrent      TorrentRef
	Preset       Preset
	SubtitleURL  string
	SubtitleName string
}

// CancelRequest is produced from a reaction event (spec §4.9) and matched
// by (ChannelID, ResponseID) against the active queue (spec §4.7.4).
type CancelRequest struct {
	ChannelID  int64
	ResponseID int64
}

// DownloadTask, EncodeTask and UploadTask are the borrowed job snapshots
// handed to each stage worker (spec §3 "Ownership"): just enough identity
// and directory/preset context to execute one stage.
type DownloadTask struct {
	JobID      int64
	Directory  string
	Torrent    TorrentRef
	CancelFile string
}

type EncodeTask struct {
	JobID     int64
	Directory string
	Preset    Preset
}

type UploadTask struct {
	JobID       int64
	Directory   string
	Destination string
}

// CommEvent is the single reconciliation channel's element type (spec
// §4.7.3): every progress and outcome frame from every worker funnels
// through here to be matched back to a job by JobID.
type CommEvent struct {
	JobID     int64
	Message   string
	Transition *Stage // nil for a pure progress update
}

// Progress builds a non-terminal progress CommEvent.
func Progress(jobID int64, message string) CommEvent {
	return CommEvent{JobID: jobID, Message: message}
}

// Transition builds a CommEvent that also carries a stage change.
func Transition(jobID int64, message string, stage Stage) CommEvent {
	s := stage
	return CommEvent{JobID: jobID, Message: message, Transition: &s}
}
