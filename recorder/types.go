package recorder

import (
	"context"
	"time"
)

// DocumentRef locates a chat message. MessageID is the registry key.
type DocumentRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// Document is a snapshot of a message's extractable content (one section per embed description).
type Document struct {
	Ref      DocumentRef
	Sections []string
}

// Actor identifies a user for attribution only.
type Actor struct {
	ID      string
	Name    string
	Mention string
}

// Cause records which trigger terminated a session.
type Cause int

const (
	CauseManual Cause = iota
	CauseTimeout
	CauseShutdown
)

func (c Cause) String() string {
	switch c {
	case CauseManual:
		return "manual"
	case CauseTimeout:
		return "timeout"
	case CauseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// State is the lifecycle state shown on the status surface.
type State int

const (
	StateRecording State = iota
	StateStopped
	StateTimedOut
)

// Status is what a surface renders for a session.
type Status struct {
	Target    DocumentRef
	Owner     Actor
	Count     int
	State     State
	StoppedBy *Actor
	Timeout   time.Duration
	IdleFor   time.Duration
}

// Remaining returns how long until the inactivity timeout fires, never negative.
func (s Status) Remaining() time.Duration {
	if r := s.Timeout - s.IdleFor; r > 0 {
		return r
	}
	return 0
}

// DocumentSource reads the current content of a target message.
type DocumentSource interface {
	Fetch(ctx context.Context, ref DocumentRef) (Document, error)
}

// Presenter opens the status surface for a new session.
type Presenter interface {
	Open(ctx context.Context, st Status) (Surface, error)
}

// Surface is the per-session render destination. Update is best effort and
// may be called many times; Finish and Publish are called at most once.
type Surface interface {
	Update(ctx context.Context, st Status) error
	Finish(ctx context.Context, st Status) error
	Publish(ctx context.Context, r Report) error
}
