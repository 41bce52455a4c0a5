package recorder

import "log/slog"

// supervise is the per-session inactivity loop. It is the sole owner of the
// timeout decision and also serializes best-effort status refreshes so the
// edit path never waits on the chat platform.
func (e *Engine) supervise(s *Session) {
	defer e.wg.Done()
	ticker := e.clock.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-s.done:
			return
		case <-s.refresh:
			e.refresh(s)
		case now := <-ticker.C:
			if !s.Active() {
				return
			}
			idle := e.clock.Now().Sub(s.LastActivity())
			if idle < e.cfg.Timeout {
				continue
			}
			e.sessionLog(s).Debug("inactivity timeout reached", slog.Duration("idle", idle), slog.Time("tick", now))
			e.finish(e.ctx, s, CauseTimeout, nil)
			return
		}
	}
}
