package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultIdleTTL = 30 * time.Minute

// Registry keys live sessions by the opaque id from the session header.
// Sessions idle past TTL are evicted by Sweep; their server-side state is
// rebuilt from the backend on the next request.
type Registry struct {
	New    func(id string) *Session
	TTL    time.Duration
	Now    func() time.Time
	Logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Registry) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return defaultIdleTTL
}

// Get returns the session for id, creating it when absent. An empty id gets
// a server-generated one; the caller echoes the returned id to the client.
func (r *Registry) Get(id string) (*Session, string) {
	if id == "" {
		id = uuid.NewString()
	}
	r.mu.Lock()
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
	s, ok := r.sessions[id]
	if !ok {
		s = r.New(id)
		r.sessions[id] = s
	}
	r.mu.Unlock()
	s.Touch(r.now())
	return s, id
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle past TTL and returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl())
	r.mu.Lock()
	var evicted int
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	r.mu.Unlock()
	if evicted > 0 {
		r.Logger.Debug().Int("evicted", evicted).Msg("idle sessions evicted")
	}
	return evicted
}

// Run sweeps periodically until the context is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}
