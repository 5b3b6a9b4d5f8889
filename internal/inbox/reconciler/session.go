package reconciler

import (
	"context"
	"errors"
	"sync"
)

// ErrNotLoggedIn is returned by Current and Logout without an active login
var ErrNotLoggedIn = errors.New("no active session")

// Session owns the reconciler of the signed-in user. Login builds a fresh
// one and Logout tears it down.
type Session struct {
	gateway Gateway
	opts    []Option

	mu         sync.Mutex
	userID     string
	reconciler *Reconciler
	cancel     context.CancelFunc
}

func NewSession(gateway Gateway, opts ...Option) *Session {
	return &Session{gateway: gateway, opts: opts}
}

// Login starts a session for userID. A previous session is torn down
// without waiting for its posts.
func (s *Session) Login(userID string) *Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reconciler != nil {
		s.teardownLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.userID = userID
	s.reconciler = New(ctx, s.gateway, s.opts...)
	s.cancel = cancel

	return s.reconciler
}

// Current returns the active reconciler and its user
func (s *Session) Current() (*Reconciler, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reconciler == nil {
		return nil, "", ErrNotLoggedIn
	}
	return s.reconciler, s.userID, nil
}

// Logout waits for pending posts until ctx is done, then clears the state
// and cancels whatever is still running.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	r := s.reconciler
	s.mu.Unlock()

	if r == nil {
		return ErrNotLoggedIn
	}

	waitErr := r.Wait(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reconciler == r {
		s.teardownLocked()
	}
	return waitErr
}

func (s *Session) teardownLocked() {
	s.reconciler.Clear()
	s.cancel()
	s.reconciler = nil
	s.cancel = nil
	s.userID = ""
}
