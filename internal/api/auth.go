package api

import (
	"errors"
	"net/http"

	"support-assistant/backend/internal/models"
	"support-assistant/backend/internal/service"
	apperrors "support-assistant/backend/pkg/errors"
	"support-assistant/backend/pkg/logger"
	"support-assistant/backend/pkg/middleware"
	"support-assistant/backend/shared/redis"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves account signup, login and session management.
type AuthHandler struct {
	users       *service.UserService
	revocations *redis.Client
}

// NewAuthHandler creates the auth endpoints. Pass nil for revocations
// to make logout a no-op beyond token expiry.
func NewAuthHandler(users *service.UserService, revocations *redis.Client) *AuthHandler {
	return &AuthHandler{users: users, revocations: revocations}
}

// Signup registers a new account. The password is never echoed back.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("InvalidRequest", err.Error()))
		return
	}

	user, err := h.users.CreateUser(&req)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.Error(apperrors.NewConflictError("UserAlreadyExists", "An account with this email already exists"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, user.ToResponse())
}

// Login exchanges form-encoded credentials for a bearer token. The
// username field carries the account email.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("InvalidRequest", err.Error()))
		return
	}

	_, token, err := h.users.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.Error(apperrors.NewUnauthorizedError("InvalidCredentials", "Incorrect email or password"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Logout revokes the presented token for the remainder of its
// lifetime. Without a revocation store the token simply ages out.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("Unauthenticated", "Authentication required"))
		return
	}

	if h.revocations != nil {
		if err := h.revocations.RevokeToken(c.Request.Context(), claims.ID, middleware.TokenTTL(claims)); err != nil {
			logger.FromContext(c).LogError(err, "failed to revoke token", "jti", claims.ID)
			c.Error(apperrors.NewInternalServerError("InternalError", "Failed to log out"))
			return
		}
	}

	c.Status(http.StatusNoContent)
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("Unauthenticated", "Authentication required"))
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}
