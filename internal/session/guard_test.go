package session

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/notice"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "operator-1",
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("upstream-secret"))
	require.NoError(t, err)
	return s
}

func TestCurrent_NoCredential(t *testing.T) {
	g := NewGuard(NewMemoryStore(), nil, nil)

	sc, err := g.Current(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, sc.Authenticated)
	assert.Empty(t, sc.Token)

	sc, err = g.Current(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, sc.Authenticated)
}

func TestLoginThenCurrent(t *testing.T) {
	store := NewMemoryStore()
	g := NewGuard(store, nil, nil)
	ctx := context.Background()

	token := signedToken(t, time.Now().Add(time.Hour))
	started, err := g.Login(ctx, token)
	require.NoError(t, err)
	require.NotEmpty(t, started.SessionID)

	sc, err := g.Current(ctx, started.SessionID)
	require.NoError(t, err)
	assert.True(t, sc.Authenticated)
	assert.Equal(t, token, sc.Token)

	require.NoError(t, g.Logout(ctx, started.SessionID))
	sc, err = g.Current(ctx, started.SessionID)
	require.NoError(t, err)
	assert.False(t, sc.Authenticated)
}

func TestLogin_RejectsEmptyAndExpired(t *testing.T) {
	g := NewGuard(NewMemoryStore(), nil, nil)

	_, err := g.Login(context.Background(), "")
	_, isValidation := apperr.AsValidation(err)
	assert.True(t, isValidation)

	_, err = g.Login(context.Background(), signedToken(t, time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
}

func TestLogin_OpaqueTokenAccepted(t *testing.T) {
	g := NewGuard(NewMemoryStore(), nil, nil)
	sc, err := g.Login(context.Background(), "opaque-token-123")
	require.NoError(t, err)
	assert.True(t, sc.Authenticated)
}

func TestCurrent_ExpiredJWTClearsCredential(t *testing.T) {
	store := NewMemoryStore()
	rec := &notice.Recorder{}
	g := NewGuard(store, rec, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "s1", signedToken(t, time.Now().Add(-time.Second)), 0))

	sc, err := g.Current(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, sc.Authenticated)

	stored, _ := store.Get(ctx, "s1")
	assert.Empty(t, stored)
	assert.Equal(t, 1, rec.Count(notice.LevelError, apperr.MsgSessionExpired))
}

func TestAttach(t *testing.T) {
	g := NewGuard(NewMemoryStore(), nil, nil)

	req, _ := http.NewRequest(http.MethodGet, "http://upstream/orders", nil)
	g.Attach(req, Context{Token: "abc", Authenticated: true})
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))

	req, _ = http.NewRequest(http.MethodGet, "http://upstream/orders", nil)
	g.Attach(req, Context{})
	_, present := req.Header["Authorization"]
	assert.False(t, present)
}

func TestOnUnauthorized_ExactlyOnce(t *testing.T) {
	store := NewMemoryStore()
	rec := &notice.Recorder{}
	g := NewGuard(store, rec, nil)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "s1", "tok", 0))

	var wg sync.WaitGroup
	contexts := make([]Context, 8)
	for i := range contexts {
		contexts[i] = Context{SessionID: "s1", Token: "tok", Authenticated: true}
		wg.Add(1)
		go func(sc *Context) {
			defer wg.Done()
			g.OnUnauthorized(ctx, sc)
		}(&contexts[i])
	}
	wg.Wait()

	for _, sc := range contexts {
		assert.False(t, sc.Authenticated)
		assert.Empty(t, sc.Token)
	}
	assert.Equal(t, 1, rec.Count(notice.LevelError, apperr.MsgSessionExpired))
	stored, _ := store.Get(ctx, "s1")
	assert.Empty(t, stored)
}

func TestStatic(t *testing.T) {
	assert.True(t, Static("worker", "svc").Authenticated)
	assert.False(t, Static("worker", "").Authenticated)
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "s1", "tok", time.Minute))
	got, _ := s.Get(ctx, "s1")
	assert.Equal(t, "tok", got)

	now = now.Add(2 * time.Minute)
	got, _ = s.Get(ctx, "s1")
	assert.Empty(t, got)
}
