// Package session binds each browser to a stable staging session id using a
// signed cookie. The id names the actor for staging compositions and for
// pending delete confirmations.
package session

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "factory-session"

// keyActorID is the session value holding the actor id.
const keyActorID = "actor_id"

type contextKey string

const actorKey contextKey = "actor_id"

// Manager issues and reads staging session cookies.
type Manager struct {
	store      *sessions.CookieStore
	cookieName string
	logger     *zap.Logger
}

// NewManager creates a cookie-backed session manager.
//
// The secret can be any passphrase; it is SHA-256 hashed to derive a 32-byte
// signing key and must be stable across restarts, otherwise every admin gets
// a fresh (empty) staging composition.
func NewManager(secret, cookieName string, secure bool, logger *zap.Logger) *Manager {
	key := sha256.Sum256([]byte(secret))
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}

	return &Manager{store: store, cookieName: cookieName, logger: logger}
}

// Middleware makes sure every request carries an actor id, issuing a new
// session cookie when the request has none (or an invalid one).
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get returns a fresh session alongside a decode error for tampered
		// or stale cookies; both cases start over.
		sess, err := m.store.Get(r, m.cookieName)
		if err != nil {
			m.logger.Debug("Discarding unreadable session cookie", zap.Error(err))
		}

		actorID, _ := sess.Values[keyActorID].(string)
		if actorID == "" {
			actorID = uuid.NewString()
			sess.Values[keyActorID] = actorID
			if err := sess.Save(r, w); err != nil {
				m.logger.Error("Failed to save session", zap.Error(err))
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actorID)))
	})
}

// WithActor returns a context carrying the actor id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext returns the actor id, or "" when the request has none.
func ActorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(actorKey).(string)
	return id
}
