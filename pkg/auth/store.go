// Package auth holds the in-memory session credential and serializes
// token refresh.
package auth

import (
	"sync"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// Store owns the current access token and user profile. Everything lives
// in memory; session continuity across restarts comes from the backend's
// refresh cookie, not from anything persisted here.
type Store struct {
	mu   sync.RWMutex
	cred models.Credential
	sub  *models.PushSubscription
}

// NewStore creates an empty, signed-out store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the credential after a successful sign-in or refresh.
func (s *Store) Set(cred models.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = cred
}

// Token returns the current access token, empty when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cred.AccessToken
}

// User returns a copy of the signed-in user profile, or nil.
func (s *Store) User() *models.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cred.User == nil {
		return nil
	}

	user := *s.cred.User

	return &user
}

// SetUser replaces only the profile, keeping the token. Used by settings
// updates that return the updated user.
func (s *Store) SetUser(user *models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		s.cred.User = nil
		return
	}

	u := *user
	s.cred.User = &u
}

// SetSubscription remembers the push subscription so it can be
// re-registered with the backend after each token refresh.
func (s *Store) SetSubscription(sub *models.PushSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub == nil {
		s.sub = nil
		return
	}

	cp := *sub
	if sub.Keys != nil {
		cp.Keys = make(map[string]string, len(sub.Keys))
		for k, v := range sub.Keys {
			cp.Keys[k] = v
		}
	}

	s.sub = &cp
}

// Subscription returns a copy of the stored push subscription, or nil.
func (s *Store) Subscription() *models.PushSubscription {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.sub == nil {
		return nil
	}

	cp := *s.sub
	if s.sub.Keys != nil {
		cp.Keys = make(map[string]string, len(s.sub.Keys))
		for k, v := range s.sub.Keys {
			cp.Keys[k] = v
		}
	}

	return &cp
}

// InvalidateToken drops only the access token, forcing the next
// GetValidToken call through the refresh path. The profile stays so the
// UI does not flicker to a signed-out state during the round-trip.
func (s *Store) InvalidateToken() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred.AccessToken = ""
}

// Clear transitions to the signed-out state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = models.Credential{}
	s.sub = nil
}

// SignedIn reports whether a user profile is present.
func (s *Store) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cred.User != nil
}
