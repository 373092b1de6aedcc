package web

import (
	"context"
	"time"
)

// SessionCleanupSchedule is the cron spec for the cleanup job
const SessionCleanupSchedule = "@every 15m"

// StartSessionCleanup schedules removal of expired visitor sessions and idle rate limiter buckets
func (s *WebServer) StartSessionCleanup() error {
	_, err := s.cron.AddFunc(SessionCleanupSchedule, s.cleanupSessions)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("Started session cleanup background task")
	return nil
}

func (s *WebServer) cleanupSessions() {
	if s.DB.IsDBshutdown() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.DB.CleanupExpiredSessions(ctx)
	if err != nil {
		s.log.WithError(err).Error("Error cleaning up expired sessions")
		return
	}
	pruned := s.limiter.Prune(time.Hour) + s.sessionLimiter.Prune(time.Hour)
	s.log.Debugf("Session cleanup completed at %s: %d sessions, %d limiters", time.Now().Format(time.RFC3339), n, pruned)
}
