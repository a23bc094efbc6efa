package session

import (
	"errors"
	"sync"

	"marketplace/internal/domain/session"
)

// CtxStoreKey is the gin context key holding the visitor's *Store.
const CtxStoreKey = "session_store"

var ErrAuthRequired = errors.New("authentication required")

// Listener observes a session change. prev and next are copies; nil means anonymous.
type Listener func(prev, next *session.Session)

// Store holds the current session of one visitor.
type Store struct {
	mu        sync.Mutex
	cur       *session.Session
	listeners map[int]Listener
	order     []int
	nextID    int
}

func NewStore() *Store {
	return &Store{listeners: map[int]Listener{}}
}

// Get returns a copy of the current session, or nil when anonymous.
func (s *Store) Get() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.cur)
}

// Set replaces the session. A session without a user id is stored as nil.
func (s *Store) Set(next *session.Session) {
	if next.Anonymous() {
		next = nil
	}

	s.mu.Lock()
	prev := s.cur
	s.cur = clone(next)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	if prev == nil && next == nil {
		return
	}
	for _, l := range ls {
		l(clone(prev), clone(next))
	}
}

func (s *Store) Clear() { s.Set(nil) }

// Require returns the session or ErrAuthRequired.
func (s *Store) Require() (*session.Session, error) {
	cur := s.Get()
	if cur.Anonymous() {
		return nil, ErrAuthRequired
	}
	return cur, nil
}

// Subscribe registers l; listeners run in subscription order after each change.
func (s *Store) Subscribe(l Listener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	kept := s.order[:0]
	for _, id := range s.order {
		if l, ok := s.listeners[id]; ok {
			out = append(out, l)
			kept = append(kept, id)
		}
	}
	s.order = kept
	return out
}

func clone(s *session.Session) *session.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
