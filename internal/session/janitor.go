package session

import (
	"context"
	"time"
)

// DefaultJanitorInterval is how often the janitor sweeps for expired
// sessions when no interval is configured.
const DefaultJanitorInterval = time.Minute

// StartJanitor launches the background loop that destroys sessions idle
// past their timeout. Starting an already running janitor is a no-op.
func (s *Storage) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}

	s.mu.Lock()
	if s.janitorStop != nil {
		s.mu.Unlock()
		return
	}
	s.janitorStop = make(chan struct{})
	s.janitorDone = make(chan struct{})
	stop, done := s.janitorStop, s.janitorDone
	s.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.CleanupExpired(context.Background())
			}
		}
	}()

	s.log.Debug().Dur("interval", interval).Msg("session janitor started")
}

// StopJanitor stops the background loop and waits for it to exit. Safe to
// call when the janitor was never started.
func (s *Storage) StopJanitor() {
	s.mu.Lock()
	stop, done := s.janitorStop, s.janitorDone
	s.janitorStop, s.janitorDone = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// CleanupExpired destroys every session whose idle timeout has elapsed and
// returns how many were destroyed.
func (s *Storage) CleanupExpired(ctx context.Context) int {
	s.mu.Lock()
	var expired []string
	for id, e := range s.sessions {
		if e.session.Expired() {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	destroyed := 0
	for _, id := range expired {
		if s.Destroy(ctx, id) {
			s.log.Info().Str("session_id", id).Msg("idle session expired")
			destroyed++
		}
	}
	return destroyed
}
