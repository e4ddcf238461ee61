package session

import (
	"context"
	"time"
)

const sweepInterval = 1 * time.Minute

// StartTTLWorker runs a background goroutine that periodically evicts
// sessions idle for longer than ttl. Sessions with a round in flight are
// never evicted.
func (s *Store) StartTTLWorker(ctx context.Context, ttl time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		s.logger.Info("session TTL worker started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				s.evictIdle(ttl)
			case <-ctx.Done():
				s.logger.Info("session TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (s *Store) evictIdle(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if _, busy := s.inflight[id]; busy {
			continue
		}
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Info("evicted idle session", "session_id", id, "status", sess.Status, "rounds_completed", sess.Cursor)
		}
	}
}
