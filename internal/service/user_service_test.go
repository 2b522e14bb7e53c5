package service

import (
	"testing"
	"time"

	"support-assistant/backend/internal/models"
	"support-assistant/backend/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *jwt.Service) {
	t.Helper()
	jwtSvc := jwt.NewService("test-secret", 8*24*time.Hour)
	return NewUserService(setupTestDB(t), jwtSvc), jwtSvc
}

func TestCreateUser(t *testing.T) {
	svc, _ := newUserService(t)

	user, err := svc.CreateUser(&models.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, string(jwt.RoleUser), user.Role)
	// Stored password must be the bcrypt hash, never the plaintext
	assert.NotEqual(t, "password123", user.Password)
	assert.True(t, models.CheckPasswordHash("password123", user.Password))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.CreateUser(&models.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(&models.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "different456",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestLogin(t *testing.T) {
	svc, jwtSvc := newUserService(t)

	created, err := svc.CreateUser(&models.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	user, token, err := svc.Login("alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	claims, err := jwtSvc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newUserService(t)

	_, err := svc.CreateUser(&models.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	_, _, err = svc.Login("alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newUserService(t)

	// Unknown accounts and bad passwords are indistinguishable to the caller
	_, _, err := svc.Login("nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetUserByID(t *testing.T) {
	svc, _ := newUserService(t)

	created, err := svc.CreateUser(&models.CreateUserRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	user, err := svc.GetUserByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, user.Email)

	_, err = svc.GetUserByID(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
