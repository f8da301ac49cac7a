package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ntewolde/local-buyer-intelligence/pkg/session"
)

func newTestSession(t *testing.T) *session.Store {
	t.Helper()
	sess, err := session.Open(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)
	return sess
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sess := newTestSession(t)
	require.NoError(t, sess.SetToken("tok-123"))

	client := New(srv.URL, sess)
	_, err := client.Get(context.Background(), "/geography/", nil, "Failed")
	require.NoError(t, err)
	require.Equal(t, "Bearer tok-123", gotAuth)
}

func TestNoBearerWhenNoSession(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, newTestSession(t))
	_, err := client.Get(context.Background(), "/geography/", nil, "Failed")
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestServerDetailWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"geography_id is required"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, newTestSession(t))
	_, err := client.Get(context.Background(), "/ingestion-runs/", nil, "Failed to fetch ingestion runs")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "geography_id is required", apiErr.Detail)
}

func TestGenericFallbackWithoutDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`oops`))
	}))
	defer srv.Close()

	client := New(srv.URL, newTestSession(t))
	_, err := client.Get(context.Background(), "/ingestion-runs/", nil, "Failed to fetch ingestion runs")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Failed to fetch ingestion runs", apiErr.Detail)
}

func TestTransportFailureNormalized(t *testing.T) {
	sess := newTestSession(t)
	require.NoError(t, sess.SetToken("tok"))

	// Nothing listens here.
	client := New("http://127.0.0.1:1", sess)
	_, err := client.Get(context.Background(), "/geography/", nil, "Failed to fetch geographies")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Zero(t, apiErr.StatusCode)
	require.Equal(t, "Failed to fetch geographies", apiErr.Detail)
	require.Error(t, errors.Unwrap(apiErr))
	// Transport failure is not an auth failure; the token stays.
	require.True(t, sess.IsAuthenticated())
}

func TestUnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	sess := newTestSession(t)
	require.NoError(t, sess.SetToken("expired"))
	require.True(t, sess.IsAuthenticated())

	client := New(srv.URL, sess)
	_, err := client.Get(context.Background(), "/auth/me", nil, "Failed to fetch current user")
	require.Error(t, err)
	require.False(t, sess.IsAuthenticated(), "401 must invalidate the session")
}

func TestLoginPersistsTokenOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/login", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "op@example.com", r.PostForm.Get("username"))
		require.Equal(t, "hunter2", r.PostForm.Get("password"))
		w.Write([]byte(`{"access_token":"fresh-token","token_type":"bearer"}`))
	}))
	defer srv.Close()

	sess := newTestSession(t)
	client := New(srv.URL, sess)

	token, err := client.Login(context.Background(), "op@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)
	require.True(t, sess.IsAuthenticated())
}

func TestLoginFailurePersistsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Incorrect email or password"}`))
	}))
	defer srv.Close()

	sess := newTestSession(t)
	client := New(srv.URL, sess)

	_, err := client.Login(context.Background(), "op@example.com", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Incorrect email or password", apiErr.Detail)
	require.False(t, sess.IsAuthenticated())
}

func TestLogoutAfterLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	sess := newTestSession(t)
	client := New(srv.URL, sess)

	_, err := client.Login(context.Background(), "op@example.com", "hunter2")
	require.NoError(t, err)
	require.True(t, sess.IsAuthenticated())

	client.Logout()
	require.False(t, sess.IsAuthenticated())
}

func TestCurrentUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/auth/me", r.URL.Path)
		w.Write([]byte(`{"id":"u-1","email":"op@example.com","role":"admin","is_active":true}`))
	}))
	defer srv.Close()

	sess := newTestSession(t)
	require.NoError(t, sess.SetToken("tok"))

	user, err := New(srv.URL, sess).CurrentUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "op@example.com", user.Email)
	require.Equal(t, "admin", user.Role)
	require.True(t, user.IsActive)
}
