package job

import "github.com/google/uuid"

// NewNegotiationKey returns a fresh negotiation key for one stage
// subprocess handshake (spec §4.2), prefixed so a log line still shows
// which stage and child a given key belongs to. Unlike the job id, the key
// only needs to be unique for the lifetime of one subprocess invocation, so
// a job retried or re-dispatched gets a distinct key rather than reusing
// one a prior attempt's child may have half-negotiated.
func NewNegotiationKey(prefix string) string {
	return prefix + uuid.New().String()
}
