// Package job holds the domain types shared by the coordinator, the stage
// workers, and the persistence layer: the Stage state machine, Preset and
// TorrentRef tagged values, and the Job/JobRow records themselves.
package job

import "fmt"

// Stage is the job state machine from spec §3, expressed as a single
// integer-backed type so persistence and comparison stay trivial (spec §9,
// "stage machine expressed as data").
type Stage int

const (
	Queued Stage = iota
	Downloading
	Downloaded
	Encoding
	Encoded
	Uploading
	Uploaded
	Failed
	Declined
	Cancelled
)

func (s Stage) String() string {
	switch s {
	case Queued:
		return "Queued"
	case Downloading:
		return "Downloading"
	case Downloaded:
		return "Downloaded"
	case Encoding:
		return "Encoding"
	case Encoded:
		return "Encoded"
	case Uploading:
		return "Uploading"
	case Uploaded:
		return "Uploaded"
	case Failed:
		return "Failed"
	case Declined:
		return "Declined"
	case Cancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether s is one of the states spec §3 calls terminal:
// the job will never transition again once it reaches one of these.
func (s Stage) Terminal() bool {
	switch s {
	case Uploaded, Failed, Declined, Cancelled:
		return true
	default:
		return false
	}
}

// mainChain holds the forward-only happy-path transitions; terminal states
// are reachable from any non-terminal stage and are validated separately.
var mainChain = map[Stage]Stage{
	Queued:      Downloading,
	Downloading: Downloaded,
	Downloaded:  Encoding,
	Encoding:    Encoded,
	Encoded:     Uploading,
	Uploading:   Uploaded,
}

// ValidTransition reports whether moving from `from` to `to` is legal: the
// next stage in the main chain, or any terminal reached from a non-terminal
// stage. Implemented as a table lookup per spec §9 rather than nested
// conditionals.
func ValidTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if next, ok := mainChain[from]; ok && next == to {
		return true
	}
	return to.Terminal()
}
