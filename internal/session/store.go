package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	sess     *Session
	lastSeen time.Time
}

// Store keeps live sessions in memory. Nothing is persisted; a restart
// discards every session.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	locks sync.Map // session ID → *sync.Mutex
}

func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Create starts a new Unauthenticated session with a random ID.
func (s *Store) Create() *Session {
	now := s.now()
	sess := New(uuid.NewString(), now)

	s.mu.Lock()
	s.entries[sess.ID] = &entry{sess: sess, lastSeen: now}
	n := len(s.entries)
	s.mu.Unlock()

	s.logger.Debug("session created", zap.String("session", sess.ID), zap.Int("live", n))
	return sess
}

// Get returns the session for id and marks it as recently used.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = s.now()
	return e.sess, true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	s.locks.Delete(id)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Lock returns the locked mutex for a session ID. Callers must call Unlock
// when done so the next event for the same session can run.
func (s *Store) Lock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu
}

// Sweep removes sessions idle for longer than idle and returns them. A
// session whose lock is held by a request in flight is kept for the next
// sweep.
func (s *Store) Sweep(idle time.Duration) []*Session {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var (
		expired []*Session
		held    []*sync.Mutex
	)
	for id, e := range s.entries {
		if !e.lastSeen.Before(cutoff) {
			continue
		}
		if v, ok := s.locks.Load(id); ok {
			mu := v.(*sync.Mutex)
			if !mu.TryLock() {
				continue
			}
			held = append(held, mu)
		}
		expired = append(expired, e.sess)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, sess := range expired {
		s.locks.Delete(sess.ID)
	}
	for _, mu := range held {
		mu.Unlock()
	}
	return expired
}

// RunSweeper calls Sweep every interval until ctx is cancelled. onExpire,
// if set, is called for each removed session.
func (s *Store) RunSweeper(ctx context.Context, interval, idle time.Duration, onExpire func(*Session)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			expired := s.Sweep(idle)
			if len(expired) > 0 {
				s.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
			}
			if onExpire != nil {
				for _, sess := range expired {
					onExpire(sess)
				}
			}
		}
	}
}
