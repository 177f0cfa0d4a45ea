// Package store holds the process-wide session state cell. The resolver is
// its single writer; everything else subscribes or reads.
package store

import (
	"sync"

	"concord/internal/session"
)

// View is one consistent observation of the cell. Provisional marks a
// cache-bootstrapped session that has not been confirmed by a live provider
// event yet.
type View struct {
	Session     *session.Session
	Provisional bool
	Loading     bool
	Err         error
}

// Store is a single-writer state cell with fan-out. Subscribers get a View
// per change on a buffered channel; a slow subscriber misses intermediate
// views but can always re-read the current one.
type Store struct {
	mu     sync.RWMutex
	view   View
	subs   map[int]chan View
	nextID int
}

func New() *Store {
	return &Store{subs: make(map[int]chan View)}
}

// Publish installs an authoritative session (nil means signed out), clearing
// the loading and error flags.
func (s *Store) Publish(sess *session.Session) {
	s.mu.Lock()
	s.view = View{Session: sess.Clone()}
	s.mu.Unlock()
	s.notify()
}

// PublishProvisional installs a cache-bootstrapped session so consumers are
// not blank at cold start. It never replaces an existing session and leaves
// the loading flag untouched.
func (s *Store) PublishProvisional(sess *session.Session) {
	s.mu.Lock()
	if s.view.Session != nil {
		s.mu.Unlock()
		return
	}
	s.view.Session = sess.Clone()
	s.view.Provisional = true
	s.mu.Unlock()
	s.notify()
}

// SetLoading flips the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.view.Loading = loading
	s.mu.Unlock()
	s.notify()
}

// SetError records a resolution error and stops loading. The current
// session, if any, stays visible.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	s.view.Err = err
	s.view.Loading = false
	s.mu.Unlock()
	s.notify()
}

// Current returns the current session (may be provisional), or nil.
func (s *Store) Current() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Session.Clone()
}

// View returns the current observation.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Session = v.Session.Clone()
	return v
}

// Subscribe returns a channel of views and a cancel function. The channel is
// buffered; when it fills, newer views are dropped in favor of re-reading
// View().
func (s *Store) Subscribe() (<-chan View, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan View, 16)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		v := s.view
		v.Session = v.Session.Clone()
		select {
		case ch <- v:
		default:
		}
	}
}
