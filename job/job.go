package job

import (
	"fmt"
	"path/filepath"
)

// Type enumerates the kinds of work a Job performs. Spec §3 names one
// member today (Encode); the type exists so a future job kind doesn't
// require restructuring the table.
type Type int

const (
	Encode Type = iota
)

// Job is the durable unit of work described in spec §3.
type Job struct {
	JobID       int64
	Author      int64
	ChannelID   int64
	ResponseID  int64
	RequestedAt int64
	Type        Type
	Preset      Preset
	Torrent     TorrentRef
	Directory   string
	Stage       Stage
	Archived    bool
}

// DirectoryFor builds the per-job directory path from spec §3:
// "DB/<author>-<job_id>-<requested_at>".
func DirectoryFor(root string, author, jobID, requestedAt int64) string {
	return filepath.Join(root, fmt.Sprintf("%d-%d-%d", author, jobID, requestedAt))
}

// Directory layout constants, spec §3/§6.
const (
	ContentsDirName       = "contents"
	WorkDirName           = "work"
	FetchTorrentName      = "fetch.torrent"
	TorrentSubdirName     = "torrent"
	InputFileName         = "input.mkv"
	SubtitleFileName      = "subtitle.ass"
	ConcatFileName        = "concat.mp4"
	OutputNoConcatName    = "output_noconcat.mp4"
	OutputFinalName       = "output.mp4"
)

func (j Job) ContentsDir() string { return filepath.Join(j.Directory, ContentsDirName) }
func (j Job) WorkDir() string     { return filepath.Join(j.Directory, WorkDirName) }
func (j Job) FetchTorrentPath() string {
	return filepath.Join(j.ContentsDir(), FetchTorrentName)
}
func (j Job) TorrentDir() string { return filepath.Join(j.ContentsDir(), TorrentSubdirName) }
func (j Job) InputPath() string  { return filepath.Join(j.TorrentDir(), InputFileName) }
func (j Job) SubtitlePath() string {
	return filepath.Join(j.ContentsDir(), SubtitleFileName)
}
func (j Job) ConcatPath() string { return filepath.Join(j.ContentsDir(), ConcatFileName) }
func (j Job) OutputNoConcatPath() string {
	return filepath.Join(j.WorkDir(), OutputNoConcatName)
}
func (j Job) OutputPath() string { return filepath.Join(j.WorkDir(), OutputFinalName) }
