package recorder

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/dexkeeper/clock"
)

// Session is one active recording against a target message.
type Session struct {
	Target    DocumentRef
	Owner     Actor
	StartedAt time.Time
	Corr      string

	clock clock.Clock

	mu           sync.Mutex
	ids          IDSet
	lastActivity time.Time
	active       bool
	stoppedAt    time.Time
	surface      Surface

	// done is closed by Stop so the supervisor exits without waiting for a tick.
	done chan struct{}
	// refresh coalesces pending status refreshes; capacity 1.
	refresh chan struct{}
	// ready is closed once Open has returned and the surface, if any, is set.
	ready     chan struct{}
	readyOnce sync.Once
}

// Snapshot is the state captured by the winning Stop call.
type Snapshot struct {
	Target    DocumentRef
	Owner     Actor
	IDs       []string
	StartedAt time.Time
	StoppedAt time.Time
}

func newSession(target DocumentRef, owner Actor, clk clock.Clock) *Session {
	now := clk.Now()
	return &Session{
		Target:       target,
		Owner:        owner,
		StartedAt:    now,
		Corr:         uuid.NewString(),
		clock:        clk,
		ids:          make(IDSet),
		lastActivity: now,
		active:       true,
		done:         make(chan struct{}),
		refresh:      make(chan struct{}, 1),
		ready:        make(chan struct{}),
	}
}

func (s *Session) markReady() { s.readyOnce.Do(func() { close(s.ready) }) }

// Ingest extracts ids from the full current content and merges them. It
// returns the number of ids not seen before; lastActivity moves only when
// that number is positive. Ingest after Stop is a no-op.
func (s *Session) Ingest(sections ...string) int {
	found := Extract(sections...)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return 0
	}
	added := 0
	for id := range found {
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		added++
	}
	if added > 0 {
		s.lastActivity = s.clock.Now()
	}
	return added
}

// Stop flips the session to inactive. Only the first caller gets ok=true and
// the snapshot; every later caller observes "already stopped".
func (s *Session) Stop() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return Snapshot{}, false
	}
	s.active = false
	s.stoppedAt = s.clock.Now()
	close(s.done)
	return Snapshot{
		Target:    s.Target,
		Owner:     s.Owner,
		IDs:       s.ids.Slice(),
		StartedAt: s.StartedAt,
		StoppedAt: s.stoppedAt,
	}, true
}

// Active reports whether the session is still recording.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Count returns the number of distinct ids recorded so far.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// IDs returns a copy of the recorded ids in lexical order.
func (s *Session) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Slice()
}

// LastActivity returns the time new ids were last found (or the start time).
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Done is closed once the session stops.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) setSurface(sf Surface) {
	s.mu.Lock()
	s.surface = sf
	s.mu.Unlock()
}

func (s *Session) getSurface() Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// notify schedules a status refresh without blocking; pending refreshes coalesce.
func (s *Session) notify() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}
