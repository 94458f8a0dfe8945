// Package requestsource is the chat-bot boundary described abstractly in
// spec §4.9: it is the source of Command/CancelRequest values and the sink
// of StatusView updates. Only the contract is specified; Gateway is
// implemented by whatever chat backend is wired in (out of scope, spec
// §1), with a fake used for coordinator tests.
package requestsource

import (
	"context"

	"github.com/relayforge/mediaforge/job"
)

// ChatEvent is the minimal shape of an inbound chat event the adapter
// translates into a Command, CancelRequest, or authorize grant. Exactly
// one of Text/Slash/Reaction is populated: Text carries both the "!enc"
// and "!authorize" command kinds of spec §4.9, Slash the "/encode" kind,
// and Reaction the reaction-based cancel path.
type ChatEvent struct {
	Author    int64
	ChannelID int64

	// Text carries a "!enc <url> [preset] [concat]" command body, or
	// "!authorize <user>".
	Text string

	// Slash carries a parsed "/encode" command; nil for text/reaction events.
	Slash *SlashCommand

	// Reaction, when non-nil, is a reaction event on a status view.
	Reaction *ReactionEvent
}

// SlashCommand mirrors "/encode torrent:<url> subtitle:<file> [preset] [concat]".
type SlashCommand struct {
	Torrent      string
	SubtitleURL  string
	SubtitleName string
	Preset       string
	Concat       string
}

// ReactionEvent is an emoji reaction on a rendered StatusView.
type ReactionEvent struct {
	Emoji      string
	ResponseID int64
	IsBot      bool
}

// StatusView is the rendered chat message the coordinator sends once and
// subsequently edits as a job progresses (spec §4.9, §4.7.3).
type StatusView struct {
	Title       string
	Color       StatusColor
	JobID       int64
	AuthorMention string
	StageLabel  string
	PresetText  string
	TorrentLink string
	Progress    string
}

// StatusColor names the per-stage color band a Gateway implementation may
// map onto its own palette (spec §4.9 "colored per stage").
type StatusColor int

const (
	ColorNeutral StatusColor = iota
	ColorInProgress
	ColorDone
	ColorError
)

// Gateway is the external chat surface: sending/editing status views and
// reading the event stream that produces Commands and CancelRequests.
// Unimplemented by this module — only the contract is specified (spec
// §4.9).
type Gateway interface {
	// SendStatusView posts a new message and returns an opaque response id
	// the coordinator persists as Job.ResponseID.
	SendStatusView(ctx context.Context, channelID int64, view StatusView) (responseID int64, err error)
	// EditStatusView updates a previously sent view in place.
	EditStatusView(ctx context.Context, channelID, responseID int64, view StatusView) error
	// Events streams inbound chat events until ctx is cancelled.
	Events(ctx context.Context) <-chan ChatEvent
}

// DeclineNotice sends an ephemeral-style failure view for an admission
// failure that never produced a job row (spec §7 "Admission failures").
func DeclineNotice(ctx context.Context, gw Gateway, channelID int64, message string) error {
	_, err := gw.SendStatusView(ctx, channelID, StatusView{
		Title:    "Request declined",
		Color:    ColorError,
		Progress: message,
	})
	return err
}
