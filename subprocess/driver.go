// Package subprocess spawns a stage binary, line-parses its stdout as
// protocol frames, and lifts each frame to a typed Frame for the stage
// worker above it to interpret (spec §4.3).
package subprocess

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayforge/mediaforge/protocol"
)

// Status codes, spec §6.
const (
	StatusProgress  = "0"
	StatusDone      = "1"
	StatusFail      = "2"
	StatusCancelled = "3"
)

// Frame is one decoded info line: a status code plus its still-nested,
// still-escaped payload string. A frame's payload shape depends on both the
// stage and the status code (a bare message, a URL, or a '/'-joined
// progress tuple), so the driver hands it over unparsed rather than forcing
// it through one fixed Schema — each worker knows its own shapes and
// unescapes leaf values itself, per spec §4.6.
type Frame struct {
	Key     string
	Status  string
	Payload string
}

// ParseFrame extracts a Frame from one non-handshake stdout line. It only
// validates that the negotiation key is known to session; it does not
// unescape or otherwise interpret Payload.
func ParseFrame(session *protocol.Session, line string) (Frame, error) {
	keyEnd := strings.IndexByte(line, ':')
	if keyEnd < 0 {
		return Frame{}, fmt.Errorf("%w: no ':' separating key from payload", protocol.ErrParse)
	}
	key, rest := line[:keyEnd], line[keyEnd+1:]
	if _, ok := session.Peer(key); !ok {
		return Frame{}, protocol.ErrUnknownNegKey
	}
	statusEnd := strings.IndexByte(rest, ':')
	if statusEnd < 0 {
		return Frame{}, fmt.Errorf("%w: no ':' separating status from payload", protocol.ErrParse)
	}
	return Frame{Key: key, Status: rest[:statusEnd], Payload: rest[statusEnd+1:]}, nil
}

// NegotiationArgs returns the trailing CLI flags every stage binary expects
// (spec §6): --negkey/--negotiator/--negver. Callers append these to their
// own stage-specific argument vector.
func NegotiationArgs(negKey, negotiatorName string, negVersion int) []string {
	return []string{"--negkey", negKey, "--negotiator", negotiatorName, "--negver", strconv.Itoa(negVersion)}
}

// Handler is invoked once per info frame read from a child's stdout. A
// non-nil error aborts the run and is surfaced to Run's caller.
type Handler func(Frame) error

// Run spawns name with args, negotiates the handshake off its first stdout
// line, and dispatches every subsequent line to handle. It returns once the
// child's stdout is closed and the child has exited. sawTerminal reports
// whether a "1"/"2"/"3" status frame was ever observed, so the caller can
// synthesize a Failed transition when a child dies silently (spec §4.3:
// "non-zero exit or absence of a terminal frame yields a Failed event").
// parseErrors, if non-nil, is incremented for every stdout line skipped for
// failing to negotiate or parse (spec §7's non-fatal skip path).
func Run(ctx context.Context, session *protocol.Session, binary string, args []string, parseErrors prometheus.Counter, handle Handler) (sawTerminal bool, err error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, fmt.Errorf("subprocess: opening stdout pipe for %s: %w", binary, err)
	}
	if err := LogStderr(cmd); err != nil {
		return false, fmt.Errorf("subprocess: opening stderr pipe for %s: %w", binary, err)
	}
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("subprocess: starting %s: %w", binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	negotiated := false
	for scanner.Scan() {
		line := scanner.Text()
		if !negotiated {
			if _, negErr := session.Negotiate(line); negErr != nil {
				if parseErrors != nil {
					parseErrors.Inc()
				}
				continue // spec §7: malformed non-negotiation lines before handshake are skipped, not fatal
			}
			negotiated = true
			continue
		}
		frame, parseErr := ParseFrame(session, line)
		if parseErr != nil {
			if parseErrors != nil {
				parseErrors.Inc()
			}
			continue // spec §7: a malformed frame is logged and skipped, not fatal
		}
		switch frame.Status {
		case StatusDone, StatusFail, StatusCancelled:
			sawTerminal = true
		}
		if handleErr := handle(frame); handleErr != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return sawTerminal, handleErr
		}
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		return sawTerminal, fmt.Errorf("subprocess: %s exited: %w", binary, waitErr)
	}
	return sawTerminal, nil
}
