package upstreamtest

import (
	"context"
	"testing"

	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/session"
	"github.com/domstore/admin-backend/internal/upstream"
)

// Token is the credential the fake accepts in an Env.
const Token = "tok-1"

// Env wires a fake store API to a real client, guard and in-memory store,
// with one logged-in session.
type Env struct {
	Server  *Server
	Client  *upstream.Client
	Guard   *session.Guard
	Store   *session.MemoryStore
	Notices *notice.Recorder
	Session session.Context
}

// NewEnv starts the fake and logs in. Everything is torn down with t.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	srv := New(Token)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	rec := &notice.Recorder{}
	guard := session.NewGuard(store, rec, nil)
	sc, err := guard.Login(context.Background(), Token)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return &Env{
		Server:  srv,
		Client:  upstream.New(srv.URL, srv.Client(), guard, nil, nil),
		Guard:   guard,
		Store:   store,
		Notices: rec,
		Session: sc,
	}
}

// LoggedIn reports whether the env's session still has a stored credential.
func (e *Env) LoggedIn() bool {
	tok, _ := e.Store.Get(context.Background(), e.Session.SessionID)
	return tok != ""
}
