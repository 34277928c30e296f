// File: internal/services/janitor.go
package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/victorniga-aphrc/early-cancer-diagnosis/internal/domain"
)

// StartJanitor schedules the eviction of idle and closed sessions.
func (s *SessionService) StartJanitor() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.config.JanitorSpec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("session janitor started", "schedule", s.config.JanitorSpec, "idle_ttl", s.config.IdleTTL)
	return nil
}

// Sweep persists and evicts every session that is closed or has been idle
// for longer than the configured TTL. Stopped live sessions keep their
// follow-up context until they go idle. It returns the number evicted.
func (s *SessionService) Sweep(ctx context.Context) int {
	now := s.deps.Clock()
	var stale []string
	s.mu.RLock()
	for id, entry := range s.sessions {
		idle := now.Sub(time.Unix(0, entry.lastActive.Load()))
		closed := entry.session.Status() == domain.StatusClosed && entry.stopBundle() == nil
		if idle > s.config.IdleTTL || closed {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.evict(ctx, id)
	}
	if len(stale) > 0 {
		s.logger.Info("sessions evicted", "count", len(stale))
	}
	return len(stale)
}

// Shutdown stops the janitor and evicts every session.
func (s *SessionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, id := range ids {
		s.evict(ctx, id)
	}
	s.logger.Info("session service stopped", "evicted", len(ids))
	return nil
}

// evict persists a session and drops it from memory. A session that was
// neither finalized nor stopped is stored with its current status so a later
// request resumes it.
func (s *SessionService) evict(ctx context.Context, id string) {
	entry, ok, done, err := s.beginTeardown(ctx, id)
	if err != nil {
		s.logger.Warn("session eviction abandoned", "session_id", id, "error", err)
		return
	}
	defer done()
	if !ok {
		return
	}
	status := entry.session.Status()
	resumable := (status == domain.StatusIdle || status == domain.StatusActive) &&
		(entry.live == nil || !entry.live.Stopped())

	s.shutdownEntry(ctx, id, entry)
	snap := entry.session.Snapshot()
	if resumable {
		snap.Status = status
	} else {
		snap.Status = domain.StatusClosed
	}
	s.retire(entry, snap)
	if err := s.deps.Cache.Delete(ctx, id); err != nil {
		s.logger.Warn("likelihood cache delete failed", "session_id", id, "error", err)
	}
	s.logger.Debug("session evicted", "session_id", id, "resumable", resumable)
}

// shutdownEntry stops the live manager or closes the session. The live event
// stream is closed only after the manager has drained.
func (s *SessionService) shutdownEntry(ctx context.Context, id string, entry *sessionEntry) {
	if entry.live != nil {
		// A manager stopped elsewhere reports ErrSessionClosed once drained.
		if err := entry.live.Close(ctx); err != nil {
			s.logger.Debug("live manager stop on teardown", "session_id", id, "error", err)
		}
		entry.closeStream()
		return
	}
	entry.session.Close()
}
