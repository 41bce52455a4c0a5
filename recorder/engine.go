package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/onnwee/dexkeeper/clock"
	"github.com/onnwee/dexkeeper/telemetry"
)

const renderTimeout = 10 * time.Second

// Config holds the recording knobs.
type Config struct {
	// Timeout is the inactivity threshold after which a session auto-stops.
	Timeout time.Duration
	// CheckInterval is how often the supervisor polls for inactivity.
	CheckInterval time.Duration
	// PageSize is the number of ids per report page.
	PageSize int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	return c
}

// Engine owns the registry and drives every session's lifecycle.
type Engine struct {
	cfg       Config
	registry  *Registry
	source    DocumentSource
	presenter Presenter
	clock     clock.Clock
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock (tests use clock.NewFake).
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// NewEngine wires an engine around an explicitly owned registry.
func NewEngine(cfg Config, registry *Registry, source DocumentSource, presenter Presenter, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg.withDefaults(),
		registry:  registry,
		source:    source,
		presenter: presenter,
		clock:     clock.Real(),
		log:       slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With(slog.String("component", "recorder"))
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Registry returns the session registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Active returns the live status of every running session, oldest first.
func (e *Engine) Active() []Status {
	sessions := e.registry.List()
	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		if s.Active() {
			out = append(out, e.status(s))
		}
	}
	return out
}

// Start begins recording the target message for owner.
func (e *Engine) Start(ctx context.Context, target DocumentRef, owner Actor) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, "recorder", "recorder.start",
		telemetry.MessageAttr(target.MessageID), telemetry.ChannelAttr(target.ChannelID), telemetry.UserAttr(owner.ID))
	defer span.End()

	doc, err := e.source.Fetch(ctx, target)
	if err != nil {
		var ue *UnavailableError
		if !errors.As(err, &ue) {
			err = &UnavailableError{Reason: ReasonUnknown, Err: err}
		}
		e.reject(span, "unavailable", err)
		return nil, err
	}
	if len(doc.Sections) == 0 {
		e.reject(span, "no_content", ErrNoContent)
		return nil, ErrNoContent
	}
	if doc.Ref.MessageID == "" {
		doc.Ref = target
	}

	s := newSession(doc.Ref, owner, e.clock)
	added := s.Ingest(doc.Sections...)
	if err := e.registry.Insert(s); err != nil {
		e.reject(span, "duplicate", err)
		return nil, err
	}
	if added > 0 {
		telemetry.EditApplied(added)
	}
	log := e.sessionLog(s)

	// A stop that lands while Open is in flight waits on ready in finish.
	surface, err := e.presenter.Open(ctx, e.status(s))
	if err != nil {
		s.Stop()
		e.registry.Remove(s.Target.MessageID, s)
		s.markReady()
		e.reject(span, "surface", err)
		return nil, fmt.Errorf("open status surface: %w", err)
	}
	s.setSurface(surface)
	s.markReady()

	telemetry.SessionStarted()
	log.Info("recording started", slog.String("owner", owner.ID), slog.Int("ids", s.Count()))
	if !s.Active() {
		log.Debug("recording stopped while its status message was opening")
		telemetry.SetSpanSuccess(span)
		return s, nil
	}

	e.wg.Add(1)
	go e.supervise(s)

	telemetry.SetSpanSuccess(span)
	return s, nil
}

// HandleEdit applies an edit notification. It returns the number of new ids;
// edits for messages without an active session are ignored.
func (e *Engine) HandleEdit(ctx context.Context, doc Document) int {
	s, ok := e.registry.Get(doc.Ref.MessageID)
	if !ok || !s.Active() {
		return 0
	}
	added := s.Ingest(doc.Sections...)
	telemetry.EditApplied(added)
	if added > 0 {
		e.sessionLog(s).Debug("new ids from edit", slog.Int("added", added), slog.Int("total", s.Count()))
		s.notify()
	}
	return added
}

// Stop terminates the session for messageID on behalf of by. Anyone may stop
// any session; the actor is used for attribution only.
func (e *Engine) Stop(ctx context.Context, messageID string, by Actor) error {
	s, ok := e.registry.Get(messageID)
	if !ok {
		return ErrNoSession
	}
	if !e.finish(ctx, s, CauseManual, &by) {
		return ErrNoSession
	}
	return nil
}

// Close stops every active session without publishing reports and waits
// for the supervisors to exit.
func (e *Engine) Close() {
	for _, s := range e.registry.List() {
		if snap, ok := s.Stop(); ok {
			e.registry.Remove(s.Target.MessageID, s)
			telemetry.SessionStopped(CauseShutdown.String(), snap.StoppedAt.Sub(snap.StartedAt), len(snap.IDs))
			e.sessionLog(s).Info("recording dropped on shutdown", slog.Int("ids", len(snap.IDs)))
		}
	}
	e.cancel()
	e.wg.Wait()
}

// finish is the single termination pipeline. Session.Stop arbitrates between
// racing triggers: only the winner unregisters and publishes.
func (e *Engine) finish(ctx context.Context, s *Session, cause Cause, by *Actor) bool {
	snap, ok := s.Stop()
	if !ok {
		return false
	}
	e.registry.Remove(s.Target.MessageID, s)

	ctx, span := telemetry.StartSpan(telemetry.WithCorrelation(ctx, s.Corr), "recorder", "recorder.finish",
		telemetry.MessageAttr(s.Target.MessageID))
	defer span.End()

	lifetime := snap.StoppedAt.Sub(snap.StartedAt)
	telemetry.SessionStopped(cause.String(), lifetime, len(snap.IDs))
	log := e.sessionLog(s)
	log.Info("recording stopped", slog.String("cause", cause.String()), slog.Int("ids", len(snap.IDs)), slog.Duration("lifetime", lifetime))

	select {
	case <-s.ready:
	case <-e.ctx.Done():
	}
	surface := s.getSurface()
	if surface == nil {
		return true
	}

	st := Status{
		Target:    snap.Target,
		Owner:     snap.Owner,
		Count:     len(snap.IDs),
		State:     StateStopped,
		StoppedBy: by,
		Timeout:   e.cfg.Timeout,
		IdleFor:   snap.StoppedAt.Sub(s.LastActivity()),
	}
	if cause == CauseTimeout {
		st.State = StateTimedOut
	}
	e.bestEffort(ctx, s, "finish", func(ctx context.Context) error { return surface.Finish(ctx, st) })

	report := BuildReport(snap.IDs, e.cfg.PageSize)
	report.Target = snap.Target
	report.Owner = snap.Owner
	report.Cause = cause
	report.StoppedBy = by

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
	defer cancel()
	if err := surface.Publish(pctx, report); err != nil {
		telemetry.RenderFailed("publish")
		telemetry.RecordError(span, err)
		log.Warn("failed to publish report", slog.Any("err", err))
		return true
	}
	telemetry.SetSpanSuccess(span)
	return true
}

// refresh renders the live status for an active session.
func (e *Engine) refresh(s *Session) {
	if !s.Active() {
		return
	}
	surface := s.getSurface()
	if surface == nil {
		return
	}
	st := e.status(s)
	e.bestEffort(e.ctx, s, "update", func(ctx context.Context) error { return surface.Update(ctx, st) })
}

// bestEffort runs a render step whose failure is logged and counted but
// never propagated.
func (e *Engine) bestEffort(ctx context.Context, s *Session, op string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renderTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		telemetry.RenderFailed(op)
		e.sessionLog(s).Debug("status render failed", slog.String("op", op), slog.Any("err", err))
	}
}

func (e *Engine) status(s *Session) Status {
	return Status{
		Target:  s.Target,
		Owner:   s.Owner,
		Count:   s.Count(),
		State:   StateRecording,
		Timeout: e.cfg.Timeout,
		IdleFor: e.clock.Now().Sub(s.LastActivity()),
	}
}

func (e *Engine) reject(span trace.Span, reason string, err error) {
	telemetry.SessionRejected(reason)
	telemetry.RecordError(span, err)
	e.log.Debug("start rejected", slog.String("reason", reason), slog.Any("err", err))
}

func (e *Engine) sessionLog(s *Session) *slog.Logger {
	return e.log.With(slog.String("corr", s.Corr), slog.String("message_id", s.Target.MessageID))
}
