package job

import "strings"

// TorrentRef is Go's rendering of spec §3's tagged TorrentType: Link(url) |
// Magnet(uri). It carries both the payload and, per spec §9, the
// downstream CLI argument name that selects pntorrent's handling branch.
type TorrentRef interface {
	// Value is the URL or magnet URI itself.
	Value() string
	// Arg is the CLI switch pntorrent expects for this variant: "--magnet"
	// or "--nomagnet" (spec §6).
	Arg() string
	// IsEmpty reports whether this is the empty-Link sentinel emitted by
	// urlnorm for an unrecognized input (spec §4.10).
	IsEmpty() bool
}

type LinkRef struct{ URL string }

func (l LinkRef) Value() string { return l.URL }
func (l LinkRef) Arg() string   { return "--nomagnet" }
func (l LinkRef) IsEmpty() bool { return l.URL == "" }

type MagnetRef struct{ URI string }

func (m MagnetRef) Value() string { return m.URI }
func (m MagnetRef) Arg() string   { return "--magnet" }
func (m MagnetRef) IsEmpty() bool { return false }

// TorrentRefFromStored reconstructs a TorrentRef from the single "link"
// column persistence stores (spec §3 JobRow): a magnet URI always carries
// its own "magnet:" prefix, so the tag doesn't need its own column.
func TorrentRefFromStored(s string) TorrentRef {
	if strings.HasPrefix(s, "magnet:") {
		return MagnetRef{URI: s}
	}
	return LinkRef{URL: s}
}
