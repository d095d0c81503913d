// Package session gives every browser a stable, opaque viewer id carried in
// a cookie.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultCookieName is used when Manager.CookieName is empty.
const DefaultCookieName = "swapsnap_viewer"

// DefaultTTL is the cookie lifetime when Manager.TTL is zero.
const DefaultTTL = 30 * 24 * time.Hour

type ctxKey struct{}

// Manager issues and reads viewer cookies.
type Manager struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Middleware makes the viewer id available to next through ViewerID. A
// request without a usable cookie gets a fresh id and a Set-Cookie header.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := m.fromRequest(r)
		if !ok {
			id = uuid.NewString()
			http.SetCookie(w, m.cookie(id))
		}
		next.ServeHTTP(w, r.WithContext(WithViewerID(r.Context(), id)))
	})
}

// WithViewerID returns a copy of ctx carrying id.
func WithViewerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ViewerID returns the viewer id stored by Middleware, or "".
func ViewerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (m *Manager) fromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(m.name())
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func (m *Manager) cookie(id string) *http.Cookie {
	ttl := m.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &http.Cookie{
		Name:     m.name(),
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) name() string {
	if m.CookieName == "" {
		return DefaultCookieName
	}
	return m.CookieName
}
