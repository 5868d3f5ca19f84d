package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"parking_reservation/internal/domain"
	"parking_reservation/internal/service"
)

type stubValidator map[string]service.Actor

func (s stubValidator) ValidateToken(_ context.Context, token string) (*service.Actor, error) {
	if token == "store-down" {
		return nil, errors.New("database is closed")
	}
	actor, ok := s[token]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", service.ErrTokenInvalid)
	}
	return &actor, nil
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware(stubValidator{
		"user-token":  {UserID: 2, Username: "alice", Role: domain.RoleUser},
		"admin-token": {UserID: 1, Username: "root", Role: domain.RoleAdmin},
	})

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", m.Authenticate(), func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID})
	})
	r.GET("/role", m.Authenticate(), func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.String(http.StatusOK, actor.Role)
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestEngine()

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic user-token", http.StatusUnauthorized},
		{"extra fields", "/me", "Bearer user-token extra", http.StatusUnauthorized},
		{"unknown token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/me", "Bearer user-token", http.StatusOK},
		{"lowercase scheme", "/me", "bearer user-token", http.StatusOK},
		{"admin token", "/role", "Bearer admin-token", http.StatusOK},
		{"lookup failure", "/me", "Bearer store-down", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthorizationHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRequestID(t *testing.T) {
	r := newTestEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestAuthMiddleware_StoresActor(t *testing.T) {
	r := newTestEngine()

	req := httptest.NewRequest(http.MethodGet, "/role", nil)
	req.Header.Set(AuthorizationHeaderKey, "Bearer admin-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RoleAdmin, w.Body.String())
}
