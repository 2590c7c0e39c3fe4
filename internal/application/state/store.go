// Package state holds the per-page-load session container.
//
// A Store is created empty for every page load, written once by the bootstrap
// orchestrator and then only read by views and outgoing API calls. It is
// passed explicitly through the request context; there is no process-wide
// instance.
package state

import (
	"context"
	"sync"

	"console/internal/domain/locale"
	"console/internal/domain/session"
)

// Store is the session container for one page load.
type Store struct {
	mu      sync.RWMutex
	session session.Session
	action  session.PendingAction
}

// NewStore creates an unauthenticated store with the fallback locale.
// POST: IsAuthenticated() is false, Language() is locale.Fallback
func NewStore() *Store {
	return &Store{session: session.Session{Locale: locale.Fallback}}
}

// Authenticate atomically replaces identifier, secret code, role and locale.
// A half-set session is stored as unauthenticated.
// POST: readers observe either the previous or the new session, never a mix
func (s *Store) Authenticate(sess session.Session) {
	sess = sess.Normalized()
	if sess.Locale == "" {
		sess.Locale = locale.Fallback
	}
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

// SetPendingAction atomically replaces the pending action.
func (s *Store) SetPendingAction(action session.PendingAction) {
	s.mu.Lock()
	s.action = action
	s.mu.Unlock()
}

// TakePendingAction returns the pending action and clears it.
// Views call this once they have acted on the deep link.
// POST: Action().IsPresent() is false
func (s *Store) TakePendingAction() (session.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := s.action
	s.action = session.PendingAction{}
	return action, action.IsPresent()
}

// Session returns a copy of the current session.
func (s *Store) Session() session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// IsAuthenticated reports whether a complete identity is held.
func (s *Store) IsAuthenticated() bool {
	return s.Session().IsAuthenticated()
}

// UUID returns the acting identifier, empty when unauthenticated.
func (s *Store) UUID() string {
	return s.Session().Identifier
}

// Code returns the secret code, empty when unauthenticated.
func (s *Store) Code() string {
	return s.Session().SecretCode
}

// Type returns the acting role, empty when unauthenticated.
func (s *Store) Type() string {
	return s.Session().Role
}

// Language returns the session locale.
func (s *Store) Language() string {
	return s.Session().Locale
}

// Action returns the pending action without clearing it.
func (s *Store) Action() session.PendingAction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.action
}

// contextKey is an unexported type for context keys in this package.
type contextKey string

const storeContextKey contextKey = "session_store"

// WithStore returns a context carrying the page-load store.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey, s)
}

// FromContext extracts the page-load store from the context.
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeContextKey).(*Store)
	return s, ok && s != nil
}
