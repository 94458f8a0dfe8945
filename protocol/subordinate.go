package protocol

import "github.com/relayforge/mediaforge/wire"

// Subordinate is the stage-binary side of the negotiation handshake: the
// producer-side mirror of subprocess.Run's consumer-side session handling
// (spec §4.2/§4.3). A stage binary constructs one per invocation, prints
// the returned handshake line as its first stdout line, then uses Frame to
// build every subsequent info line.
type Subordinate struct {
	session *Session
	key     string
}

// NewSubordinate negotiates self (this binary's own identity) against a
// parent announced as negotiatorName at negVersion under negKey, and
// returns the subordinate plus the handshake line the caller must write to
// stdout before anything else.
func NewSubordinate(self ToolInfo, negotiatorName string, negVersion int, negKey string) (*Subordinate, string, error) {
	session := NewSession(self, negVersion)
	target := ToolInfo{Tool: negotiatorName, Build: self.Build, Version: negVersion}
	line, err := session.Request(target, negKey)
	if err != nil {
		return nil, "", err
	}
	return &Subordinate{session: session, key: negKey}, line, nil
}

// Frame builds one "<key>:<status>:<payload>" info line: status is one of
// subprocess.StatusProgress/Done/Fail/Cancelled, and payload is serialized
// from payloadSchema/payload per spec §4.1's depth-1 tuple framing.
func (s *Subordinate) Frame(status string, payloadSchema wire.Schema, payload wire.TypeC) (string, error) {
	schema := wire.Multi(wire.Leaf(), payloadSchema)
	data := wire.MultiValue(wire.Single(status), payload)
	return s.session.BuildInfoString(s.key, schema, data)
}

// Message builds a status frame whose payload is a single leaf string —
// used for bare-message done/fail frames with no tuple payload.
func (s *Subordinate) Message(status, message string) (string, error) {
	return s.Frame(status, wire.Leaf(), wire.Single(message))
}

// Tuple builds a progress (or any multi-field) frame from a flat slice of
// already-stringified leaf values.
func (s *Subordinate) Tuple(status string, fields ...string) (string, error) {
	schemas := make([]wire.Schema, len(fields))
	values := make([]wire.TypeC, len(fields))
	for i, f := range fields {
		schemas[i] = wire.Leaf()
		values[i] = wire.Single(f)
	}
	return s.Frame(status, wire.Multi(schemas...), wire.MultiValue(values...))
}
