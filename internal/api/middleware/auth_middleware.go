package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"parking_reservation/internal/service"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	ActorKey                = "actor"
)

// TokenValidator turns a bearer token into the actor it was issued to.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*service.Actor, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's Actor in the gin context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeaderKey)
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		fields := strings.Fields(authHeader)
		if len(fields) != 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		actor, err := m.validator.ValidateToken(c.Request.Context(), fields[1])
		if err != nil {
			if errors.Is(err, service.ErrTokenInvalid) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			logrus.WithError(err).WithField(RequestIDKey, c.GetString(RequestIDKey)).Error("Authenticate: token subject lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(ActorKey, *actor)
		c.Next()
	}
}

// ActorFromContext returns the actor stored by Authenticate.
func ActorFromContext(c *gin.Context) (service.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := v.(service.Actor)
	return actor, ok
}
