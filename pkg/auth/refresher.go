package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ishayyemini/yieldx-redmite-dashboard/pkg/models"
)

// RefreshFunc performs the refresh round-trip against the backend using
// the HTTP-only refresh cookie and returns the new credential.
type RefreshFunc func(ctx context.Context) (models.Credential, error)

// ResubscribeFunc re-registers a push subscription with the backend so
// notification delivery follows the new token.
type ResubscribeFunc func(ctx context.Context, sub models.PushSubscription) error

// Refresher hands out unexpired access tokens, refreshing transparently.
// Concurrent callers share a single in-flight refresh round-trip.
type Refresher struct {
	store       *Store
	refresh     RefreshFunc
	resubscribe ResubscribeFunc
	onSignedOut func()

	group  singleflight.Group
	parser *jwt.Parser
	now    func() time.Time
	logger zerolog.Logger
}

// NewRefresher wires a refresher to the store. onSignedOut is invoked
// once whenever a refresh fails irrecoverably, after the store has been
// cleared; the owner uses it to tear down the channel and registry.
func NewRefresher(store *Store, refresh RefreshFunc, log zerolog.Logger) *Refresher {
	return &Refresher{
		store:   store,
		refresh: refresh,
		parser:  jwt.NewParser(),
		now:     time.Now,
		logger:  log.With().Str("component", "auth").Logger(),
	}
}

// OnSignedOut sets the forced sign-out hook.
func (r *Refresher) OnSignedOut(fn func()) {
	r.onSignedOut = fn
}

// OnRefreshed sets the push-subscription re-registration hook.
func (r *Refresher) OnRefreshed(fn ResubscribeFunc) {
	r.resubscribe = fn
}

// GetValidToken returns a token whose embedded expiry claim is still in
// the future, refreshing first when it is expired, missing or
// undecodable. On refresh failure the session is cleared and
// models.ErrUnauthorized is returned.
func (r *Refresher) GetValidToken(ctx context.Context) (string, error) {
	if token := r.store.Token(); token != "" && !r.expired(token) {
		return token, nil
	}

	return r.Refresh(ctx)
}

// Refresh forces a refresh round-trip regardless of the current token's
// validity. At most one round-trip is outstanding at a time; concurrent
// callers all receive the result of the in-flight one.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	token, err, _ := r.group.Do("refresh", func() (any, error) {
		cred, err := r.refresh(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("Token refresh failed, signing out")
			r.store.Clear()

			if r.onSignedOut != nil {
				r.onSignedOut()
			}

			return "", fmt.Errorf("%w: token refresh failed: %s", models.ErrUnauthorized, err)
		}

		r.store.Set(cred)

		if sub := r.store.Subscription(); sub != nil && r.resubscribe != nil {
			if err := r.resubscribe(ctx, *sub); err != nil {
				// Delivery targeting is best-effort; the session itself
				// is fine.
				r.logger.Warn().Err(err).Msg("Failed to re-register push subscription")
			}
		}

		r.logger.Debug().Msg("Access token refreshed")

		return cred.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

// expired decodes the token's exp claim without verifying the signature;
// the client never holds the signing key. Undecodable tokens count as
// expired so they are repaired by a refresh rather than bounced by the
// backend on every call.
func (r *Refresher) expired(token string) bool {
	claims := jwt.MapClaims{}

	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !exp.Time.After(r.now())
}
