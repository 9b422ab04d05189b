package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domstore/admin-backend/internal/apperr"
	"github.com/domstore/admin-backend/internal/notice"
	"github.com/domstore/admin-backend/internal/session"
)

type fixture struct {
	client *Client
	store  *session.MemoryStore
	rec    *notice.Recorder
	sc     session.Context
	hits   *atomic.Int32
}

func newFixture(t *testing.T, h http.HandlerFunc) *fixture {
	t.Helper()
	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	rec := &notice.Recorder{}
	guard := session.NewGuard(store, rec, nil)
	sc, err := guard.Login(context.Background(), "tok-1")
	require.NoError(t, err)

	return &fixture{
		client: New(srv.URL, srv.Client(), guard, nil, nil),
		store:  store,
		rec:    rec,
		sc:     sc,
		hits:   hits,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestDo_SuccessDecodesData(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "page=1&limit=10", r.URL.RawQuery)
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   map[string]any{"orders": []map[string]any{{"_id": "o1"}}},
		})
	})

	var out struct {
		Orders []struct {
			ID string `json:"_id"`
		} `json:"orders"`
	}
	err := f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodGet, Path: "/orders", RawQuery: "page=1&limit=10"}, &out)
	require.NoError(t, err)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, "o1", out.Orders[0].ID)
}

func TestDo_NoCredentialSkipsNetwork(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not be called")
	})
	err := f.client.Do(context.Background(), &session.Context{SessionID: "x"}, Request{Method: http.MethodGet, Path: "/vouchers"}, nil)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	assert.Zero(t, f.hits.Load())

	err = f.client.Do(context.Background(), nil, Request{Method: http.MethodGet, Path: "/vouchers"}, nil)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
}

func TestDo_UnauthorizedClearsSession(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "jwt expired"})
	})

	err := f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodPut, Path: "/orders/o1", Body: map[string]string{"status": "Success"}}, nil)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
	assert.False(t, f.sc.Authenticated)

	stored, _ := f.store.Get(context.Background(), f.sc.SessionID)
	assert.Empty(t, stored)
	assert.Equal(t, 1, f.rec.Count(notice.LevelError, apperr.MsgSessionExpired))

	// the flipped context now fails locally
	err = f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodGet, Path: "/orders"}, nil)
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	assert.EqualValues(t, 1, f.hits.Load())
}

func TestDo_ErrorStatusWithHTTP200(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "voucher code already exists"})
	})
	err := f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodPost, Path: "/vouchers", Body: map[string]string{"code": "X"}}, nil)
	re, ok := apperr.AsRequest(err)
	require.True(t, ok)
	assert.Equal(t, "voucher code already exists", re.Message)
	assert.Equal(t, http.StatusOK, re.StatusCode)
}

func TestDo_NonJSONServerError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})
	err := f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodGet, Path: "/vouchers"}, nil)
	re, ok := apperr.AsRequest(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), re.Message)
}

func TestDo_EmptyObjectIsSuccess(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	err := f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodPut, Path: "/orders/o1", Body: map[string]string{"status": "Delivering"}}, nil)
	assert.NoError(t, err)
}

func TestDo_TransportError(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.client.baseURL = "http://127.0.0.1:1"
	err := f.client.Do(context.Background(), &f.sc, Request{Method: http.MethodGet, Path: "/orders"}, nil)
	re, ok := apperr.AsRequest(err)
	require.True(t, ok)
	assert.Zero(t, re.StatusCode)
	assert.NotEmpty(t, re.Message)
}
