package requestsource

import (
	"context"
	"strconv"
	"strings"

	"github.com/relayforge/mediaforge/envstore"
	pnerrors "github.com/relayforge/mediaforge/errors"
	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	"github.com/relayforge/mediaforge/urlnorm"
)

const (
	adminClass     = "admin"
	authorizeClass = "authorize"
)

// Adapter translates ChatEvents into the Command/CancelRequest values the
// coordinator consumes (spec §4.9), authorizing against envstore's
// permission-class files.
type Adapter struct {
	perms *envstore.Store
}

func NewAdapter(perms *envstore.Store) *Adapter {
	return &Adapter{perms: perms}
}

// TranslateCommand parses a "!enc"/"/encode" ChatEvent into a job.Command,
// enforcing authorization and attachment presence per spec §4.9/§7.
func (a *Adapter) TranslateCommand(ev ChatEvent) (job.Command, error) {
	authorized, err := a.perms.IsAuthorized(authorizeClass, ev.Author)
	if err != nil {
		return job.Command{}, err
	}
	if !authorized {
		return job.Command{}, pnerrors.Unretriable(pnerrors.ErrUnauthorized)
	}

	var torrentArg, preset, concat, subtitleURL, subtitleName string
	switch {
	case ev.Slash != nil:
		torrentArg = ev.Slash.Torrent
		preset = ev.Slash.Preset
		concat = ev.Slash.Concat
		subtitleURL = ev.Slash.SubtitleURL
		subtitleName = ev.Slash.SubtitleName
		if subtitleURL == "" {
			return job.Command{}, pnerrors.Unretriable(pnerrors.ErrMissingAttachment)
		}
	default:
		fields := strings.Fields(ev.Text)
		if len(fields) < 2 {
			return job.Command{}, pnerrors.Unretriable(pnerrors.ErrMissingAttachment)
		}
		torrentArg = fields[1]
		if len(fields) > 2 {
			preset = fields[2]
		}
		if len(fields) > 3 {
			concat = fields[3]
		}
	}

	ref := urlnorm.Normalize(torrentArg)
	if ref.IsEmpty() {
		return job.Command{}, pnerrors.Unretriable(pnerrors.ErrEmptyTorrentLink)
	}

	return job.Command{
		Author:       ev.Author,
		ChannelID:    ev.ChannelID,
		Torrent:      ref,
		Preset:       parsePreset(preset, concat),
		SubtitleURL:  subtitleURL,
		SubtitleName: subtitleName,
	}, nil
}

// TranslateAuthorize parses "!authorize <user>", restricted to the admin
// permission class, and appends the target to the authorize class file.
func (a *Adapter) TranslateAuthorize(ev ChatEvent) error {
	isAdmin, err := a.perms.IsAdmin(ev.Author)
	if err != nil {
		return err
	}
	if !isAdmin {
		return pnerrors.Unretriable(pnerrors.ErrUnauthorized)
	}

	fields := strings.Fields(ev.Text)
	if len(fields) < 2 {
		return pnerrors.Unretriable(pnerrors.ErrMissingAttachment)
	}
	target, err := strconv.ParseInt(strings.TrimPrefix(fields[1], "<@"), 10, 64)
	if err != nil {
		target, err = strconv.ParseInt(strings.Trim(fields[1], "<@!>"), 10, 64)
		if err != nil {
			return pnerrors.Unretriable(err)
		}
	}
	return a.perms.Authorize(target)
}

// TranslateCancel turns a non-bot reaction event into a CancelRequest
// (spec §4.9 "reaction events ... unless the reactor is the bot itself").
func TranslateCancel(ev ChatEvent) (job.CancelRequest, bool) {
	if ev.Reaction == nil || ev.Reaction.IsBot || ev.Reaction.Emoji != "❌" {
		return job.CancelRequest{}, false
	}
	return job.CancelRequest{ChannelID: ev.ChannelID, ResponseID: ev.Reaction.ResponseID}, true
}

// Pump drains gw's event stream, translates each ChatEvent, and forwards
// the result onto commands/cancels for the coordinator to consume. A
// translation failure is reported back to the channel as a decline notice
// rather than killing the pump (spec §7 "Admission failures" are non-fatal
// to the service as a whole).
func (a *Adapter) Pump(ctx context.Context, gw Gateway, commands chan<- job.Command, cancels chan<- job.CancelRequest) {
	events := gw.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.dispatch(ctx, ev, gw, commands, cancels)
		}
	}
}

func (a *Adapter) dispatch(ctx context.Context, ev ChatEvent, gw Gateway, commands chan<- job.Command, cancels chan<- job.CancelRequest) {
	if cancel, ok := TranslateCancel(ev); ok {
		cancels <- cancel
		return
	}

	if strings.HasPrefix(ev.Text, "!authorize") {
		if err := a.TranslateAuthorize(ev); err != nil {
			log.LogNoRequestID("requestsource: authorize command failed", "author", ev.Author, "err", err)
			_ = DeclineNotice(ctx, gw, ev.ChannelID, err.Error())
		}
		return
	}

	cmd, err := a.TranslateCommand(ev)
	if err != nil {
		log.LogNoRequestID("requestsource: command translation failed", "author", ev.Author, "err", err)
		_ = DeclineNotice(ctx, gw, ev.ChannelID, err.Error())
		return
	}
	commands <- cmd
}

// parsePreset maps the CLI-ish preset/concat text tokens onto a
// job.Preset; unrecognized preset tokens default to Standard, matching the
// original implementation's lenient command parsing.
func parsePreset(preset, concat string) job.Preset {
	var kind job.PresetKind
	switch strings.ToLower(preset) {
	case "pseudolossless", "lossless":
		kind = job.PresetPseudoLossless
	case "gpu":
		kind = job.PresetGpu
	default:
		kind = job.PresetStandard
	}

	p := job.Preset{Kind: kind}
	if id, err := strconv.Atoi(concat); err == nil {
		p.ConcatID = &id
	}
	return p
}
