// Package urlnorm canonicalizes torrent source links from a known tracker
// site into deterministic ".torrent" download URLs, per spec §4.10.
package urlnorm

import (
	"strings"

	"github.com/relayforge/mediaforge/job"
)

type eliminationMethod int

const (
	doNothing eliminationMethod = iota
	eliminate
)

type pattern struct {
	startsWith string
	endsWith   string
	method     eliminationMethod
}

// patterns mirrors the four ordered rules: the first match wins.
var patterns = []pattern{
	{startsWith: "https://nyaa.si/download/", endsWith: ".torrent", method: doNothing},
	{startsWith: "https://nyaa.si/view/", endsWith: "/torrent", method: eliminate},
	{startsWith: "https://nyaa.si/download/", endsWith: "", method: eliminate},
	{startsWith: "https://nyaa.si/view/", endsWith: "", method: eliminate},
}

func (p pattern) match(s string) (string, bool) {
	if !strings.HasPrefix(s, p.startsWith) {
		return "", false
	}
	if p.endsWith != "" && !strings.HasSuffix(s, p.endsWith) {
		return "", false
	}
	switch p.method {
	case doNothing:
		return s, true
	case eliminate:
		trimmed := strings.TrimPrefix(s, p.startsWith)
		trimmed = strings.TrimSuffix(trimmed, p.endsWith)
		return "https://nyaa.si/download/" + trimmed + ".torrent", true
	default:
		return "", false
	}
}

// Normalize canonicalizes str into a TorrentRef: a Link for a recognized
// nyaa.si URL (rewritten by whichever of the four patterns matches first),
// a Magnet passthrough for "magnet:" URIs, or the empty-Link sentinel for
// anything else.
func Normalize(str string) job.TorrentRef {
	if strings.HasPrefix(str, "https://nyaa") || strings.HasPrefix(str, "http://nyaa") {
		for _, p := range patterns {
			if rewritten, ok := p.match(str); ok {
				return job.LinkRef{URL: rewritten}
			}
		}
		return job.LinkRef{URL: ""}
	}
	if strings.HasPrefix(str, "magnet:") {
		return job.MagnetRef{URI: str}
	}
	return job.LinkRef{URL: ""}
}
