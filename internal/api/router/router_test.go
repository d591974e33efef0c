package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/dto"
	"github.com/cuongbtq/homeserve-be/internal/api/handler"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/cuongbtq/homeserve-be/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRouter(t *testing.T) {
	deps := &handler.Dependencies{
		Logger: newTestLogger(),
		Users:  stubUsers{},
		Tokens: auth.NewTokenManager("0123456789abcdef0123456789abcdef", "homeserve", time.Hour),
	}
	cfg := &config.Config{
		App:       config.AppConfig{Name: "marketplace-api"},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1, Burst: 10},
	}

	r, err := SetupRouter(deps, cfg)
	require.NoError(t, err)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/bookings", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/bookings/alerts", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/notifications/read-all", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/realtime/sse", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestSetupRouter_NotReady(t *testing.T) {
	deps := &handler.Dependencies{
		Logger: newTestLogger(),
		Users:  stubUsers{},
		Tokens: auth.NewTokenManager("0123456789abcdef0123456789abcdef", "homeserve", time.Hour),
		Ready: func(context.Context) error {
			return errors.New("database not ready")
		},
	}

	r, err := SetupRouter(deps, &config.Config{})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, w.Body.String())
}

func TestSetupRouter_PathIDs(t *testing.T) {
	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "homeserve", time.Hour)
	deps := &handler.Dependencies{
		Logger: newTestLogger(),
		Users: stubUsers{users: map[string]*model.User{
			"u-1": {ID: "u-1", Role: domain.RoleUser, IsActive: true},
			"a-1": {ID: "a-1", Role: domain.RoleAdmin, IsActive: true},
		}},
		Tokens: tokens,
	}
	r, err := SetupRouter(deps, &config.Config{})
	require.NoError(t, err)

	issue := func(id, role string) string {
		token, _, err := tokens.Issue(auth.Principal{UserID: id, Role: role})
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name      string
		method    string
		path      string
		token     string
		wantField string
	}{
		{"booking", http.MethodGet, "/api/v1/bookings/abc", issue("u-1", domain.RoleUser), "id"},
		{"booking action", http.MethodPost, "/api/v1/bookings/1234/cancel", issue("u-1", domain.RoleUser), "id"},
		{"scrap", http.MethodGet, "/api/v1/scrap/not-a-uuid", issue("u-1", domain.RoleUser), "id"},
		{"notification", http.MethodPost, "/api/v1/notifications/abc/read", issue("u-1", domain.RoleUser), "id"},
		{"admin user", http.MethodPost, "/api/v1/admin/users/abc/activate", issue("a-1", domain.RoleAdmin), "id"},
		{"wallet adjust", http.MethodPost, "/api/v1/admin/wallets/abc/adjust", issue("a-1", domain.RoleAdmin), "user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "invalid path id", body.Error)
			assert.Equal(t, "uuid", body.Details[tt.wantField])
		})
	}

	t.Run("unauthenticated request is still 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bookings/abc", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
