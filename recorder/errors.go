package recorder

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSession is returned when the target message is already being recorded.
	ErrDuplicateSession = errors.New("already recording ids from this message")
	// ErrTargetUnavailable is matched by every *UnavailableError.
	ErrTargetUnavailable = errors.New("target message unavailable")
	// ErrNoContent is returned when the target has nothing ids could be extracted from.
	ErrNoContent = errors.New("target message has no embeds")
	// ErrNoSession is returned by Stop when no active session exists for the target.
	ErrNoSession = errors.New("no active recording for this message")
)

// UnavailableReason explains why a target message could not be read.
type UnavailableReason int

const (
	// ReasonUnknown covers transport failures that are neither 404 nor 403.
	ReasonUnknown UnavailableReason = iota
	// ReasonNotFound means the message does not exist (deleted or wrong id).
	ReasonNotFound
	// ReasonForbidden means the bot lacks permission to read the message.
	ReasonForbidden
)

// String returns a human-readable name for the reason.
func (r UnavailableReason) String() string {
	switch r {
	case ReasonNotFound:
		return "not_found"
	case ReasonForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// UnavailableError wraps a fetch failure with its classified reason.
type UnavailableError struct {
	Reason UnavailableReason
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("target message unavailable (%s)", e.Reason)
	}
	return fmt.Sprintf("target message unavailable (%s): %v", e.Reason, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTargetUnavailable) true for every UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrTargetUnavailable }
