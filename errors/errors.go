// Package errors provides typed wrappers used across the coordinator and
// worker packages to distinguish retriable failures from ones that should
// never be retried, matching the teacher's UnretriableError/IsUnretriable
// idiom adapted away from its HTTP-response-writing concerns.
package errors

import (
	"errors"
	"fmt"
)

// UnretriableError marks an error that should never trigger a retry
// anywhere up the call stack — admission failures (spec §7) are wrapped in
// this before being surfaced to the request-source adapter.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{err}
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

// IsUnretriable reports whether err (or something it wraps) is an
// UnretriableError.
func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

// ObjectNotFoundError marks a missing-object condition from the upload
// client's object store driver (clients/object_store_client.go's pattern),
// always unretriable.
type ObjectNotFoundError struct {
	msg   string
	cause error
}

func (e ObjectNotFoundError) Error() string { return e.msg }
func (e ObjectNotFoundError) Unwrap() error { return e.cause }

func NewObjectNotFoundError(msg string, cause error) error {
	if cause != nil {
		msg = fmt.Sprintf("ObjectNotFoundError: %s: %s", msg, cause)
	} else {
		msg = fmt.Sprintf("ObjectNotFoundError: %s", msg)
	}
	return Unretriable(ObjectNotFoundError{msg: msg, cause: cause})
}

func IsObjectNotFound(err error) bool {
	return errors.As(err, &ObjectNotFoundError{})
}

// Sentinel errors surfaced at the request-source boundary (spec §7
// "Admission failures").
var (
	ErrUnauthorized     = errors.New("caller is not authorized for this command")
	ErrMissingAttachment = errors.New("command requires a subtitle attachment")
	ErrEmptyTorrentLink = errors.New("torrent link is empty or unrecognized")
)
