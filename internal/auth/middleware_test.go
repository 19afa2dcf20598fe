package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/recipe-box/app/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	db, err := database.InitDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	user, err := database.CreateUser(context.Background(), db, "user@example.com", "testpass123", "")
	require.NoError(t, err)

	tokens := NewTokens("secret", "recipebox", time.Hour)
	valid, err := tokens.Issue(user.ID)
	require.NoError(t, err)
	unknownUser, err := tokens.Issue(user.ID + 100)
	require.NoError(t, err)

	unauthorized := func(w http.ResponseWriter, r *http.Request, message string) {
		http.Error(w, message, http.StatusUnauthorized)
	}
	var seen int64
	protected := Middleware(tokens, db, unauthorized)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		require.True(t, ok)
		seen = u.ID
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token " + valid, wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "unknown user", header: "Bearer " + unknownUser, wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/api/recipe/tags/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, user.ID, seen)
			} else {
				assert.Zero(t, seen)
			}
		})
	}
}

func TestMiddlewareInactiveUser(t *testing.T) {
	db, err := database.InitDB(":memory:")
	require.NoError(t, err)
	defer db.Close()

	user, err := database.CreateUser(context.Background(), db, "inactive@example.com", "testpass123", "")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE users SET is_active = 0 WHERE id = ?", user.ID)
	require.NoError(t, err)

	tokens := NewTokens("secret", "recipebox", time.Hour)
	token, err := tokens.Issue(user.ID)
	require.NoError(t, err)

	called := false
	protected := Middleware(tokens, db, func(w http.ResponseWriter, r *http.Request, message string) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestCurrentUserMissing(t *testing.T) {
	_, ok := CurrentUser(context.Background())
	assert.False(t, ok)
}
