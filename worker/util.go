package worker

import (
	"strconv"
	"strings"
)

// splitTuple splits a '/'-joined progress tuple (spec §4.1 depth-1
// delimiter) and returns nil if it doesn't have exactly want fields, so
// callers can fall back to a plain message rather than panic on a
// malformed frame.
func splitTuple(payload string, want int) []string {
	parts := strings.Split(payload, "/")
	if len(parts) != want {
		return nil
	}
	return parts
}

// bytesToMiB mirrors the original implementation's byte-to-megabyte
// rounding for progress display: a malformed count renders as 0 rather
// than aborting the progress update.
func bytesToMiB(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n / 1024 / 1024
}
