// README: Registry owns the live sessions and their goroutines.
package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"lookout/internal/modules/location"
)

// Registry creates sessions fed by pushed sensor readings and keeps them
// until they are removed or the registry is closed.
type Registry struct {
	ctx  context.Context
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup
}

// NewRegistry returns a Registry whose sessions run until ctx ends.
func NewRegistry(ctx context.Context, deps Deps) *Registry {
	return &Registry{ctx: ctx, deps: deps, sessions: make(map[string]*Session)}
}

// Create starts a new session for owner. Unset settings fall back to the
// registry defaults.
func (r *Registry) Create(owner string, set Settings) (*Session, error) {
	if err := set.validate(); err != nil {
		return nil, err
	}
	cfg := r.deps.Defaults
	if set.RadiusM != nil {
		cfg.RadiusM = *set.RadiusM
	}
	if set.Enrich != nil {
		cfg.Enrich = *set.Enrich
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	id := uuid.NewString()
	s := New(id, owner, cfg, location.NewPushSource(), r.deps)
	r.sessions[id] = s
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := s.Run(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session %s: %v", id, err)
		}
		r.forget(s)
	}()
	return s, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes the session, waits for it to release its resources and
// drops its published snapshot.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	<-s.Done()

	if d, ok := r.deps.Publisher.(Discarder); ok {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := d.Delete(ctx, id); err != nil {
			log.Printf("session %s: delete snapshot: %v", id, err)
		}
	}
	return nil
}

// Len reports how many sessions are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every session and waits for them.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	r.wg.Wait()
}

func (r *Registry) forget(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID()]; ok && cur == s {
		delete(r.sessions, s.ID())
	}
}
