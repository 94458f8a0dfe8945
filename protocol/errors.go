package protocol

import (
	"errors"

	"github.com/relayforge/mediaforge/wire"
)

// Protocol-level errors. Per spec §7 these are always non-fatal at the
// receiver: a malformed line is logged and skipped, never propagated as a
// job failure.
var (
	ErrNotNegotiationLine   = errors.New("protocol: line is not a negotiation handshake")
	ErrInvalidNegotiation   = errors.New("protocol: malformed or unsupported negotiation line")
	ErrUnknownNegKey        = errors.New("protocol: negotiation key not found in session table")
	ErrNegotiationMalformed = errors.New("protocol: frame payload does not match the expected schema")
	ErrParse                = errors.New("protocol: could not parse frame")
)

// asMalformed maps a wire shape-mismatch error onto the protocol-level
// NegotiationMalformed error named in spec §7, preserving the underlying
// cause for logging.
func asMalformed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, wire.ErrShapeMismatch) || errors.Is(err, wire.ErrMaxDepthExceeded) {
		return errors.Join(ErrNegotiationMalformed, err)
	}
	return err
}
