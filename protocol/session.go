package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relayforge/mediaforge/wire"
)

const negotiationPreamble = "PNprotocol"

// ToolInfo identifies one side of a negotiation: a binary name, a build
// identifier (commit hash or release tag), and a wire grammar version.
type ToolInfo struct {
	Tool    string
	Build   string
	Version int
}

func (t ToolInfo) triple() string {
	return fmt.Sprintf("%s@%s@%d", t.Tool, t.Build, t.Version)
}

func parseTriple(s string) (ToolInfo, error) {
	parts := strings.Split(s, "@")
	if len(parts) != 3 {
		return ToolInfo{}, fmt.Errorf("%w: %q is not <tool>@<build>@<version>", ErrInvalidNegotiation, s)
	}
	version, err := strconv.Atoi(parts[2])
	if err != nil {
		return ToolInfo{}, fmt.Errorf("%w: non-integer version in %q", ErrInvalidNegotiation, s)
	}
	return ToolInfo{Tool: parts[0], Build: parts[1], Version: version}, nil
}

// grammarParser renders or reads a frame's payload for one grammar version.
// The map in Session.supported is the version-dispatch seam spec §4.2/§9
// requires: every entry funnels to v1 today, but a future version is added
// by registering a new map entry rather than rewriting this type.
type grammarParser struct {
	serialize func(schema wire.Schema, data wire.TypeC) (string, error)
	parse     func(schema wire.Schema, payload string) (wire.TypeC, error)
}

func grammarV1() grammarParser {
	return grammarParser{serialize: wire.Serialize, parse: wire.Parse}
}

// Session owns one peer connection's negotiation table. A Session is driven
// exclusively by the single goroutine that owns its subprocess (or, on the
// worker side, the single process emitting frames on its own stdout), so it
// carries no internal locking, consistent with spec §9's "avoid shared
// mutable state" note.
type Session struct {
	self      ToolInfo
	supported map[int]grammarParser
	negotiated map[string]ToolInfo
}

// NewSession creates a session announcing as `self` and accepting the given
// supported grammar versions.
func NewSession(self ToolInfo, supportedVersions ...int) *Session {
	s := &Session{
		self:       self,
		supported:  make(map[int]grammarParser, len(supportedVersions)),
		negotiated: make(map[string]ToolInfo),
	}
	for _, v := range supportedVersions {
		s.supported[v] = grammarV1()
	}
	return s
}

// Negotiate parses a handshake line of the form
// "PNprotocol:<sender>:<target>:<key>" where both <sender> and <target> are
// <tool>@<build>@<version> triples. On success it records the sender's
// triple under key — the sender is the peer whose subsequent frames this
// session will need to interpret, which is what later build/extract calls
// key off of.
func (s *Session) Negotiate(line string) (string, error) {
	if !strings.HasPrefix(line, negotiationPreamble) {
		return "", ErrNotNegotiationLine
	}
	parts := strings.Split(line, ":")
	if len(parts) < 4 {
		return "", fmt.Errorf("%w: expected 4 colon-separated parts, got %d", ErrInvalidNegotiation, len(parts))
	}
	sender, err := parseTriple(parts[1])
	if err != nil {
		return "", err
	}
	target, err := parseTriple(parts[2])
	if err != nil {
		return "", err
	}
	_ = target // validated for shape; only the sender's triple is retained
	if _, ok := s.supported[sender.Version]; !ok {
		return "", fmt.Errorf("%w: grammar version %d not supported", ErrInvalidNegotiation, sender.Version)
	}
	key := parts[len(parts)-1]
	s.negotiated[key] = sender
	return key, nil
}

// Request formats this session's own handshake line announcing `self` to
// `target` under `key`, self-negotiates it (so the session can immediately
// build/extract frames under that key), and returns the printable line. The
// caller writes the returned line to its own stdout; per spec §4.3 a
// subordinate's first line is exactly this.
func (s *Session) Request(target ToolInfo, key string) (string, error) {
	line := fmt.Sprintf("%s:%s:%s:%s", negotiationPreamble, s.self.triple(), target.triple(), key)
	// Self-negotiation records the peer (target) under key so this process
	// can itself call BuildInfoString for subsequent frames.
	if _, ok := s.supported[s.self.Version]; !ok {
		return "", fmt.Errorf("%w: own grammar version %d not registered as supported", ErrInvalidNegotiation, s.self.Version)
	}
	s.negotiated[key] = target
	return line, nil
}

// BuildInfoString serializes data against schema and prefixes it with
// "<key>:", ready to be written as one stdout line.
func (s *Session) BuildInfoString(key string, schema wire.Schema, data wire.TypeC) (string, error) {
	peer, ok := s.negotiated[key]
	if !ok {
		return "", ErrUnknownNegKey
	}
	grammar, ok := s.supported[peer.Version]
	if !ok {
		grammar = grammarV1()
	}
	payload, err := grammar.serialize(schema, data)
	if err != nil {
		return "", asMalformed(err)
	}
	return key + ":" + payload, nil
}

// ExtractData splits a "<key>:<payload>" line on the first colon, looks up
// the key's negotiated grammar version, and parses the payload against
// schema. All supported versions currently dispatch to the same v1 parser.
func (s *Session) ExtractData(line string, schema wire.Schema) (string, wire.TypeC, error) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", wire.TypeC{}, fmt.Errorf("%w: no ':' separating key from payload", ErrParse)
	}
	key, payload := line[:idx], line[idx+1:]
	peer, ok := s.negotiated[key]
	if !ok {
		return "", wire.TypeC{}, ErrUnknownNegKey
	}
	grammar, ok := s.supported[peer.Version]
	if !ok {
		grammar = grammarV1()
	}
	data, err := grammar.parse(schema, payload)
	if err != nil {
		return "", wire.TypeC{}, asMalformed(err)
	}
	return key, data, nil
}

// Peer returns the negotiated ToolInfo for key, if any.
func (s *Session) Peer(key string) (ToolInfo, bool) {
	peer, ok := s.negotiated[key]
	return peer, ok
}
