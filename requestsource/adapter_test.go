package requestsource

import (
	"testing"

	"github.com/relayforge/mediaforge/envstore"
	pnerrors "github.com/relayforge/mediaforge/errors"
	"github.com/relayforge/mediaforge/job"
	"github.com/stretchr/testify/require"
)

func newAuthorizedAdapter(t *testing.T, authorIDs ...int64) *Adapter {
	t.Helper()
	perms := envstore.New(t.TempDir())
	for _, id := range authorIDs {
		require.NoError(t, perms.Authorize(id))
	}
	return NewAdapter(perms)
}

func TestTranslateCommandRejectsUnauthorized(t *testing.T) {
	a := newAuthorizedAdapter(t)
	_, err := a.TranslateCommand(ChatEvent{Author: 1, Text: "!enc https://nyaa.si/download/1.torrent"})
	require.ErrorIs(t, err, pnerrors.ErrUnauthorized)
}

func TestTranslateCommandParsesTextCommand(t *testing.T) {
	a := newAuthorizedAdapter(t, 1)
	cmd, err := a.TranslateCommand(ChatEvent{Author: 1, ChannelID: 9, Text: "!enc https://nyaa.si/download/1.torrent gpu 3"})
	require.NoError(t, err)
	require.Equal(t, int64(1), cmd.Author)
	require.Equal(t, job.PresetGpu, cmd.Preset.Kind)
	require.NotNil(t, cmd.Preset.ConcatID)
	require.Equal(t, 3, *cmd.Preset.ConcatID)
}

func TestTranslateCommandRejectsEmptyLink(t *testing.T) {
	a := newAuthorizedAdapter(t, 1)
	_, err := a.TranslateCommand(ChatEvent{Author: 1, Text: "!enc not-a-torrent-link"})
	require.ErrorIs(t, err, pnerrors.ErrEmptyTorrentLink)
}

func TestTranslateCommandSlashRequiresAttachment(t *testing.T) {
	a := newAuthorizedAdapter(t, 1)
	_, err := a.TranslateCommand(ChatEvent{Author: 1, Slash: &SlashCommand{Torrent: "https://nyaa.si/download/1.torrent"}})
	require.ErrorIs(t, err, pnerrors.ErrMissingAttachment)
}

func TestTranslateCancelIgnoresBotReactions(t *testing.T) {
	_, ok := TranslateCancel(ChatEvent{Reaction: &ReactionEvent{Emoji: "❌", IsBot: true}})
	require.False(t, ok)
}

func TestTranslateCancelMatchesReaction(t *testing.T) {
	req, ok := TranslateCancel(ChatEvent{ChannelID: 5, Reaction: &ReactionEvent{Emoji: "❌", ResponseID: 77}})
	require.True(t, ok)
	require.Equal(t, job.CancelRequest{ChannelID: 5, ResponseID: 77}, req)
}

func TestTranslateAuthorizeRequiresAdmin(t *testing.T) {
	a := newAuthorizedAdapter(t, 1)
	err := a.TranslateAuthorize(ChatEvent{Author: 1, Text: "!authorize 42"})
	require.ErrorIs(t, err, pnerrors.ErrUnauthorized)
}
