package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/sekkei/internal/pipeline"
)

// defaultSessionRetention is how long a finished session stays
// addressable after reaching a terminal state, so clients can fetch the
// final snapshot or retry a failed save.
const defaultSessionRetention = 30 * time.Minute

// Registry tracks live pipeline sessions by id. Finished sessions are
// swept out after a retention window.
type Registry struct {
	retention time.Duration
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*registryEntry
}

type registryEntry struct {
	session *pipeline.Session
	doneAt  time.Time
}

// NewRegistry creates a session registry. retention <= 0 uses the
// default.
func NewRegistry(retention time.Duration, logger *slog.Logger) *Registry {
	if retention <= 0 {
		retention = defaultSessionRetention
	}
	return &Registry{
		retention: retention,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*registryEntry),
	}
}

// Add registers a session.
func (r *Registry) Add(s *pipeline.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = &registryEntry{session: s}
}

// Get returns the session with the given id.
func (r *Registry) Get(id uuid.UUID) (*pipeline.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Drain stops every live session and waits for each to reach a terminal
// state or for ctx to expire. Used during graceful shutdown so partial
// transcripts get saved.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.RLock()
	live := make([]*pipeline.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		select {
		case <-e.session.Done():
		default:
			live = append(live, e.session)
		}
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for _, s := range live {
		g.Go(func() error {
			if err := s.Stop(ctx); err != nil {
				r.logger.Warn("registry: drain stop failed", "session_id", s.ID(), "error", err)
			}
			select {
			case <-s.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// Run sweeps finished sessions periodically until ctx is cancelled. It
// blocks, so call it in a goroutine.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

// sweep removes sessions that have been terminal longer than the
// retention window.
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		select {
		case <-e.session.Done():
		default:
			continue
		}
		if e.doneAt.IsZero() {
			e.doneAt = now
			continue
		}
		if now.Sub(e.doneAt) >= r.retention {
			delete(r.sessions, id)
			r.logger.Debug("registry: swept finished session", "session_id", id)
		}
	}
}
