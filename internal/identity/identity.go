// Package identity abstracts the authentication collaborator: it supplies
// the current owner identifier (empty when signed out) and notifies watchers
// when that identifier changes. The synchronization engine re-derives all of
// its state from this value; nothing else about the auth provider leaks in.
package identity

import "sync"

// Provider exposes the active owner identifier and change notifications.
type Provider interface {
	// Current returns the active owner id, or "" when signed out.
	Current() string

	// Watch registers fn to be called with the new owner id on every
	// sign-in, sign-out or switch. The returned stop function removes the
	// registration.
	Watch(fn func(owner string)) (stop func())
}

// Static is a settable in-process Provider. It backs the token provider and
// stands in for a real auth service in tests.
type Static struct {
	mu       sync.Mutex
	owner    string
	watchers map[uint64]func(string)
	next     uint64
}

// NewStatic returns a signed-out Static provider.
func NewStatic() *Static {
	return &Static{watchers: make(map[uint64]func(string))}
}

func (s *Static) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *Static) Watch(fn func(owner string)) (stop func()) {
	s.mu.Lock()
	s.next++
	id := s.next
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// SignIn sets the active owner and notifies watchers. Signing in as the
// already-active owner is a no-op.
func (s *Static) SignIn(owner string) {
	s.set(owner)
}

// SignOut clears the active owner and notifies watchers.
func (s *Static) SignOut() {
	s.set("")
}

func (s *Static) set(owner string) {
	s.mu.Lock()
	if s.owner == owner {
		s.mu.Unlock()
		return
	}
	s.owner = owner
	fns := make([]func(string), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(owner)
	}
}
