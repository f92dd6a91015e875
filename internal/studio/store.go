package studio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"poster-studio/internal/apperr"
	"poster-studio/internal/poster"
)

const DefaultVariations = 3

type StoreOptions struct {
	Variations int
	// PosterOptions are passed to every new poster.Store.
	PosterOptions []poster.Option
}

// Store holds sessions by id. Every mutation runs under one lock.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	variations int
	posterOpts []poster.Option
	now        func() time.Time
}

func NewStore(opts StoreOptions) *Store {
	v := opts.Variations
	if v < 1 || v > maxVariations {
		v = DefaultVariations
	}
	return &Store{
		sessions:   make(map[string]*Session),
		variations: v,
		posterOpts: opts.PosterOptions,
		now:        time.Now,
	}
}

// Create starts a session with a fresh id.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.Ensure(id)
	return id
}

// Ensure creates the session id if it does not exist yet.
func (s *Store) Ensure(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(id)
}

func (s *Store) getOrCreateLocked(id string) *Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := newSession(id, s.variations, s.posterOpts...)
	sess.UpdatedAt = s.now()
	s.sessions[id] = sess
	return sess
}

// Update runs fn on the session under the store lock.
func (s *Store) Update(id string, fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "session %s not found", id)
	}
	sess.UpdatedAt = s.now()
	if fn == nil {
		return nil
	}
	return fn(sess)
}

// View returns the JSON form of the session.
func (s *Store) View(id string) (View, error) {
	var v View
	err := s.Update(id, func(sess *Session) error {
		v = sess.View()
		return nil
	})
	return v, err
}

// Replace swaps the session's poster for an imported one.
func (s *Store) Replace(id string, ps *poster.Store) error {
	return s.Update(id, func(sess *Session) error {
		sess.Poster = ps
		sess.Controller = poster.NewController(ps)
		sess.Options.AspectRatio = ps.Canvas().AspectRatio
		return nil
	})
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions that have been idle for longer than idle and have
// nothing in flight.
func (s *Store) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	n := 0
	for id, sess := range s.sessions {
		if len(sess.pending) > 0 || sess.UpdatedAt.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		n++
	}
	return n
}

// RunSweeper calls Sweep every idle/2 until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(idle)
		}
	}
}
