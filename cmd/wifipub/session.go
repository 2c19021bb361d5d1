package main

import (
	"context"
	"errors"
	"sync"

	"github.com/nerrad567/wifipub/internal/middleware"
)

// errNoSession is reported by the session health check before setup opens one.
var errNoSession = errors.New("no middleware session open")

// sessionTracker remembers the most recent session opened through the
// runtime so it can be health checked from outside the middleware.
type sessionTracker struct {
	mu      sync.Mutex
	current middleware.Session
}

func (s *sessionTracker) track(next middleware.SessionFactory) middleware.SessionFactory {
	return func(ctx context.Context, dial middleware.DialFunc) (middleware.Session, error) {
		session, err := next(ctx, dial)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.current = session
		s.mu.Unlock()
		return session, nil
	}
}

// HealthCheck probes the tracked session when it supports health checks.
func (s *sessionTracker) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	session := s.current
	s.mu.Unlock()

	if session == nil {
		return errNoSession
	}
	if hc, ok := session.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
