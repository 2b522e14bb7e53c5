package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"support-assistant/backend/internal/models"
	"support-assistant/backend/internal/service"
	apperrors "support-assistant/backend/pkg/errors"
	"support-assistant/backend/pkg/jwt"
	"support-assistant/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by the authentication middleware.
const (
	ContextClaimsKey = "claims"
	ContextUserKey   = "user"
)

// UserCache is the subset of the cache used for identity lookups.
type UserCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
}

// RevocationStore answers whether a token id has been revoked.
type RevocationStore interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Auth authenticates requests with bearer tokens. The revocation store
// and the identity cache are both optional.
type Auth struct {
	jwtService  *jwt.Service
	users       *service.UserService
	revocations RevocationStore
	userCache   UserCache
}

// NewAuth creates the authentication middleware. Pass nil for
// revocations to skip revocation checks and nil for userCache to hit
// the database on every request.
func NewAuth(jwtService *jwt.Service, users *service.UserService, revocations RevocationStore, userCache UserCache) *Auth {
	return &Auth{
		jwtService:  jwtService,
		users:       users,
		revocations: revocations,
		userCache:   userCache,
	}
}

// RequireAuth validates the Authorization header and loads the
// authenticated user into the request context. Requests without a
// valid, unrevoked token are rejected with 401.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "Missing or malformed Authorization header")
			return
		}

		claims, err := a.jwtService.ValidateToken(token)
		if err != nil {
			if err == jwt.ErrExpiredToken {
				abortUnauthorized(c, "Token has expired")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		if a.revocations != nil {
			revoked, err := a.revocations.IsTokenRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				// The revocation store being down must not lock every
				// user out; log and fall through to the signature check
				// already performed above.
				logger.FromContext(c).LogError(err, "revocation check failed")
			} else if revoked {
				abortUnauthorized(c, "Token has been revoked")
				return
			}
		}

		user, err := a.resolveUser(claims.UserID)
		if err != nil {
			abortUnauthorized(c, "Unknown account")
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose token lacks the
// given role. It must run after RequireAuth.
func (a *Auth) RequireRole(role jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			abortUnauthorized(c, "Authentication required")
			return
		}
		if !claims.HasRole(role) {
			c.Error(apperrors.NewForbiddenError("NotAuthorized", "Insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// resolveUser loads the user behind a token, consulting the identity
// cache first so hot sessions skip the database.
func (a *Auth) resolveUser(userID uint) (*models.User, error) {
	key := fmt.Sprintf("user:%d", userID)
	if a.userCache != nil {
		if cached, ok := a.userCache.Get(key); ok {
			if user, ok := cached.(*models.User); ok {
				return user, nil
			}
		}
	}

	user, err := a.users.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	if a.userCache != nil {
		a.userCache.Set(key, user)
	}
	return user, nil
}

// CurrentUser returns the authenticated user set by RequireAuth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// CurrentClaims returns the token claims set by RequireAuth.
func CurrentClaims(c *gin.Context) (*jwt.Claims, bool) {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*jwt.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Error(apperrors.NewUnauthorizedError("Unauthenticated", msg))
	c.Abort()
}

// TokenTTL returns how long a token remains valid, for revocation
// entries that should expire with the token itself.
func TokenTTL(claims *jwt.Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return time.Until(claims.ExpiresAt.Time)
}
