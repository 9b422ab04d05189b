// Package session derives the authenticated request context of a panel
// session from its stored credential and invalidates it on expiry.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/notice"
)

// DefaultTTL bounds how long an opaque (non-JWT) credential is kept.
const DefaultTTL = 24 * time.Hour

const (
	// HeaderSessionID names the panel session on every admin API request.
	HeaderSessionID = "X-Session-ID"
	// ContextKey is the gin context key holding the *Context of the request.
	ContextKey = "session"
)

// Context is the explicit session state threaded into every privileged operation.
// It is built once at the boundary; operations never read the store themselves.
type Context struct {
	SessionID     string
	Token         string
	Authenticated bool
}

// Static builds a Context around a fixed credential (e.g. the worker's service token).
// It is not backed by a store entry.
func Static(name, token string) Context {
	return Context{SessionID: name, Token: token, Authenticated: token != ""}
}

// Guard reads, attaches and invalidates stored credentials.
type Guard struct {
	store    Store
	notifier notice.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewGuard creates a session guard.
func NewGuard(store Store, notifier notice.Notifier, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notice.Multi{}
	}
	return &Guard{store: store, notifier: notifier, logger: logger, now: time.Now}
}

// Current reads the stored credential of sessionID and sets the authenticated flag.
// A JWT whose exp has passed is treated like a server-reported expiry.
func (g *Guard) Current(ctx context.Context, sessionID string) (Context, error) {
	sc := Context{SessionID: sessionID}
	if sessionID == "" {
		return sc, nil
	}
	token, err := g.store.Get(ctx, sessionID)
	if err != nil {
		return sc, fmt.Errorf("load credential: %w", err)
	}
	if token == "" {
		return sc, nil
	}
	sc.Token = token
	sc.Authenticated = true
	if exp, ok := tokenExpiry(token); ok && !g.now().Before(exp) {
		g.OnUnauthorized(ctx, &sc)
	}
	return sc, nil
}

// Attach injects the bearer header. No-op when the context carries no token.
func (g *Guard) Attach(req *http.Request, sc Context) {
	if sc.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+sc.Token)
}

// OnUnauthorized clears the stored credential, flips sc to unauthenticated and
// tells the operator to log in again. Only the caller that actually removed the
// credential emits the notice, so concurrent 401s produce one notice.
func (g *Guard) OnUnauthorized(ctx context.Context, sc *Context) {
	sc.Authenticated = false
	sc.Token = ""
	removed, err := g.store.Delete(ctx, sc.SessionID)
	if err != nil {
		g.logger.Error("clear credential", zap.String("session_id", sc.SessionID), zap.Error(err))
		return
	}
	if !removed {
		return
	}
	g.logger.Info("session expired", zap.String("session_id", sc.SessionID))
	notice.Error(ctx, g.notifier, sc.SessionID, apperr.MsgSessionExpired)
}

// Login stores token under a fresh session id and returns the resulting context.
func (g *Guard) Login(ctx context.Context, token string) (Context, error) {
	if token == "" {
		return Context{}, apperr.InvalidFields("token is required", map[string]string{"token": "token is required"})
	}
	ttl := DefaultTTL
	if exp, ok := tokenExpiry(token); ok {
		ttl = exp.Sub(g.now())
		if ttl <= 0 {
			return Context{}, apperr.ErrSessionExpired
		}
	}
	sessionID := uuid.New().String()
	if err := g.store.Set(ctx, sessionID, token, ttl); err != nil {
		return Context{}, fmt.Errorf("store credential: %w", err)
	}
	g.logger.Info("session started", zap.String("session_id", sessionID), zap.Duration("ttl", ttl))
	return Context{SessionID: sessionID, Token: token, Authenticated: true}, nil
}

// Logout drops the stored credential of sessionID.
func (g *Guard) Logout(ctx context.Context, sessionID string) error {
	if _, err := g.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// tokenExpiry reads the exp claim of a JWT without verifying its signature;
// the upstream stays the authority on validity. Opaque tokens report ok=false.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
