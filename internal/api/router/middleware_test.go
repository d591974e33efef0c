package router

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/cuongbtq/homeserve-be/internal/api/handler"
	"github.com/cuongbtq/homeserve-be/internal/api/model"
	"github.com/cuongbtq/homeserve-be/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubUsers struct {
	handler.UserStore
	users map[string]*model.User
}

func (s stubUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", "homeserve", time.Hour)
	users := stubUsers{users: map[string]*model.User{
		"u-1": {ID: "u-1", Role: domain.RoleUser, IsActive: true},
		"u-2": {ID: "u-2", Role: domain.RoleUser, IsActive: false},
	}}

	issue := func(id, role string) string {
		token, _, err := tokens.Issue(auth.Principal{UserID: id, Role: role})
		require.NoError(t, err)
		return token
	}

	newRouter := func(allowQuery bool) *gin.Engine {
		r := gin.New()
		r.GET("/private", AuthMiddleware(tokens, users, newTestLogger(), allowQuery), func(c *gin.Context) {
			c.String(http.StatusOK, auth.MustPrincipal(c.Request.Context()).UserID)
		})
		return r
	}

	tests := []struct {
		name       string
		allowQuery bool
		header     string
		query      string
		wantStatus int
	}{
		{name: "bearer", header: "Bearer " + issue("u-1", domain.RoleUser), wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + issue("u-1", domain.RoleUser), wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "deleted account", header: "Bearer " + issue("u-404", domain.RoleUser), wantStatus: http.StatusUnauthorized},
		{name: "inactive account", header: "Bearer " + issue("u-2", domain.RoleUser), wantStatus: http.StatusForbidden},
		{name: "query token ignored", query: issue("u-1", domain.RoleUser), wantStatus: http.StatusUnauthorized},
		{name: "query token allowed", allowQuery: true, query: issue("u-1", domain.RoleUser), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/private"
			if tt.query != "" {
				path += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			newRouter(tt.allowQuery).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "u-1", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) {
		if role := c.GetHeader("X-Role"); role != "" {
			c.Request = c.Request.WithContext(auth.NewContext(c.Request.Context(), auth.Principal{UserID: "x", Role: role}))
		}
	}, RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for role, want := range map[string]int{
		domain.RoleAdmin:  http.StatusNoContent,
		domain.RoleVendor: http.StatusForbidden,
		"":                http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-Role", role)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(1, 3), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))

	// buckets are per client
	assert.Equal(t, http.StatusOK, send("10.0.0.2"))
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "trace-abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-abc", w.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "a=1&token=REDACTED", redactToken("a=1&token=secret"))
	assert.Equal(t, "a=1", redactToken("a=1"))
}
