package urlnorm

import (
	"testing"

	"github.com/relayforge/mediaforge/job"
	"github.com/stretchr/testify/require"
)

// Ported from the original implementation's nyaaise test module.

func TestNyaaDownloadTorrentPassthrough(t *testing.T) {
	link := "https://nyaa.si/download/2075946.torrent"
	got := Normalize(link)
	ref, ok := got.(job.LinkRef)
	require.True(t, ok)
	require.Equal(t, link, ref.URL)
}

func TestNyaaViewTorrentSuffix(t *testing.T) {
	link := "https://nyaa.si/view/2075946/torrent"
	got := Normalize(link)
	ref, ok := got.(job.LinkRef)
	require.True(t, ok)
	require.Equal(t, "https://nyaa.si/download/2075946.torrent", ref.URL)
}

func TestNyaaDownloadNoSuffix(t *testing.T) {
	link := "https://nyaa.si/download/2075946"
	got := Normalize(link)
	ref, ok := got.(job.LinkRef)
	require.True(t, ok)
	require.Equal(t, "https://nyaa.si/download/2075946.torrent", ref.URL)
}

func TestNyaaViewNoSuffix(t *testing.T) {
	link := "https://nyaa.si/view/2075946"
	got := Normalize(link)
	ref, ok := got.(job.LinkRef)
	require.True(t, ok)
	require.Equal(t, "https://nyaa.si/download/2075946.torrent", ref.URL)
}

func TestMagnetPassthrough(t *testing.T) {
	link := "magnet:?xt=urn:btih:109c9fc9ffbc4c320296d0569db67c451f49c069&dn=test"
	got := Normalize(link)
	ref, ok := got.(job.MagnetRef)
	require.True(t, ok)
	require.Equal(t, link, ref.URI)
}

func TestUnrecognizedURLYieldsEmptyLinkSentinel(t *testing.T) {
	got := Normalize("https://example.com/not-a-tracker")
	ref, ok := got.(job.LinkRef)
	require.True(t, ok)
	require.True(t, ref.IsEmpty())
}
