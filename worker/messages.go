// Package worker implements the three long-lived stage consumers from spec
// §4.4-§4.6: download, encode, upload. Each pulls one task at a time off
// its own bounded channel, drives a stage binary through the subprocess
// driver, and emits CommEvents back to the coordinator.
package worker

// Progress/outcome message text, spec §4.4-§4.6. These are status-view
// copy, not log lines: the coordinator forwards them verbatim into the
// edited status view's progress field.
const (
	CTorrentDone     = "torrent metadata downloaded, starting torrent transfer"
	CTorrentFail     = "torrent metadata download failed"
	TorrentProg      = "downloading torrent"
	TorrentDone      = "torrent downloaded"
	TorrentFail      = "torrent download failed"
	TorrentCancelled = "cancelled"

	EncodeProg = "encoding"
	EncodeDone = "encode finished, uploading"
	EncodeFail = "encode failed"

	UploadProg = "uploading"
	UploadDone = "uploaded"
	UploadFail = "upload failed"
)
