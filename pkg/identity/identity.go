// pkg/identity/identity.go

// Package identity is the boundary to the external identity provider.
// Credential management (sign-up, sign-in, password handling) lives entirely
// on the provider's side; this package only carries the opaque identity and
// its change notifications into the sync engine.
package identity

import "sync"

// User is the opaque identity returned by the provider.
type User struct {
	ID    string
	Email string
}

// Provider exposes the current signed-in identity and change notifications.
// A nil user means signed out.
type Provider interface {
	Current() *User
	// OnChange registers fn for identity changes and returns an unsubscribe
	// function. fn is invoked with nil on sign-out.
	OnChange(fn func(*User)) (unsubscribe func())
}

// Static is a Provider with an explicitly managed identity. It serves tests
// and trusted-client deployments where the real provider lives elsewhere and
// identities arrive already verified.
type Static struct {
	mu   sync.Mutex
	user *User
	subs map[int]func(*User)
	next int
}

// NewStatic returns a provider whose current identity is u (may be nil).
func NewStatic(u *User) *Static {
	return &Static{user: u, subs: make(map[int]func(*User))}
}

// Current implements Provider.
func (s *Static) Current() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// OnChange implements Provider.
func (s *Static) OnChange(fn func(*User)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Set replaces the current identity and notifies subscribers. Passing nil
// signs out.
func (s *Static) Set(u *User) {
	s.mu.Lock()
	s.user = u
	fns := make([]func(*User), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
