// Package session manages authenticated browser sessions.
//
// A session is an opaque random token in an HttpOnly cookie pointing at a
// server-side record in Redis. The record holds a snapshot of the principal
// taken at login; later changes to the stored user are deliberately not
// reflected until re-login.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/cache"
	"github.com/booklog/booklog/internal/model"
)

// Store is the persistence interface the manager needs.
// *cache.Cache satisfies it.
type Store interface {
	GetSession(ctx context.Context, token string) (*cache.SessionRecord, error)
	SetSession(ctx context.Context, token string, rec *cache.SessionRecord, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

// Manager creates, restores and destroys sessions.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager creates a session Manager.
func NewManager(store Store, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Create serializes the user into a new session and returns its token.
func (m *Manager) Create(ctx context.Context, user *model.User) (string, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	rec := &cache.SessionRecord{
		Principal: model.Principal{
			UserID:    user.ID,
			Email:     user.Email,
			LoginAt:   time.Now(),
			Federated: user.IsFederated(),
		},
		SortKey: model.SortByTimestamp,
	}

	if err := m.store.SetSession(ctx, token, rec, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

// Get restores the session record for a token.
// Returns nil for unknown, expired or malformed tokens.
func (m *Manager) Get(ctx context.Context, token string) (*cache.SessionRecord, error) {
	if !auth.ValidSessionToken(token) {
		return nil, nil
	}
	return m.store.GetSession(ctx, token)
}

// Destroy removes the session record for a token.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if !auth.ValidSessionToken(token) {
		return nil
	}
	return m.store.DeleteSession(ctx, token)
}

// SetSortKey updates the per-session sort preference.
// The rewrite refreshes the session TTL, which is acceptable for a
// deliberate user action.
func (m *Manager) SetSortKey(ctx context.Context, token string, key model.SortKey) error {
	rec, err := m.Get(ctx, token)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	rec.SortKey = key
	return m.store.SetSession(ctx, token, rec, m.ttl)
}

// TokenFromRequest extracts the session token from the request cookie.
// Returns empty string when no session cookie is present.
func (m *Manager) TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// WriteCookie sets the session cookie on a response.
func (m *Manager) WriteCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on a response.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
