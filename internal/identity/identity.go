// internal/identity/identity.go
package identity

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindGuest         Kind = "guest"
	KindAuthenticated Kind = "authenticated"
)

// Identity is the tagged variant presented to the backend: exactly one of an
// authenticated bearer token or a guest session id is active per call.
type Identity struct {
	Kind      Kind
	Token     string
	SessionID string
}

func (id Identity) IsAuthenticated() bool {
	return id.Kind == KindAuthenticated
}

// SessionStore persists the guest session id across restarts.
type SessionStore interface {
	GuestSessionID() (string, error)
	SetGuestSessionID(id string) error
	DeleteGuestSessionID() error
}

// Resolver centralizes identity selection. An authenticated token always wins
// over a guest session; a guest session is lazily created on first need and
// kept until the cart transfer discards it.
type Resolver struct {
	mu        sync.Mutex
	store     SessionStore
	logger    *logrus.Logger
	authToken string
}

func NewResolver(store SessionStore, logger *logrus.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// SetAuthToken adopts the bearer token of a logged-in user. Subsequent
// resolutions use the authenticated endpoint family exclusively.
func (r *Resolver) SetAuthToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token != "" && tokenExpired(token) {
		r.logger.WithField("component", "identity").Warn("adopted bearer token is already expired; backend calls may fall back to guest mode")
	}
	r.authToken = token
}

func (r *Resolver) ClearAuthToken() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authToken = ""
}

func (r *Resolver) AuthToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authToken
}

// Resolve picks the identity for the next backend call.
func (r *Resolver) Resolve() (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.authToken != "" {
		return Identity{Kind: KindAuthenticated, Token: r.authToken}, nil
	}

	sessionID, err := r.store.GuestSessionID()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read guest session: %w", err)
	}
	if sessionID == "" {
		sessionID = newGuestSessionID()
		if err := r.store.SetGuestSessionID(sessionID); err != nil {
			return Identity{}, fmt.Errorf("failed to persist guest session: %w", err)
		}
		r.logger.WithFields(logrus.Fields{
			"component":  "identity",
			"session_id": sessionID,
		}).Info("created guest session")
	}
	return Identity{Kind: KindGuest, SessionID: sessionID}, nil
}

// DiscardGuestSession drops the persisted guest session id. Called once the
// cart transfer has moved the guest cart into the authenticated cart.
func (r *Resolver) DiscardGuestSession() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.DeleteGuestSessionID()
}

// newGuestSessionID builds a random, timestamp-salted guest session id.
func newGuestSessionID() string {
	return fmt.Sprintf("guest_%d_%s", time.Now().UnixMilli(), uuid.NewString())
}

// IsBackendID reports whether the identifier is shaped like a backend-assigned
// record id (canonical UUID). Local composite keys fail this check, which is
// how callers detect that the remote echo has not arrived yet.
func IsBackendID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// tokenExpired decodes the token without verifying its signature and reports
// whether its exp claim is in the past. Verification is the backend's job;
// this only feeds logging.
func tokenExpired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}
