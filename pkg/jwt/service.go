package jwt

import (
	"time"
)

// Service issues and validates session tokens. The signing secret and
// expiry are injected at startup rather than read from the environment
// on every call.
type Service struct {
	secretKey string
	expiry    time.Duration
}

// NewService creates a new JWT service
func NewService(secretKey string, expiry time.Duration) *Service {
	if expiry == 0 {
		expiry = 8 * 24 * time.Hour
	}

	return &Service{
		secretKey: secretKey,
		expiry:    expiry,
	}
}

// GenerateToken generates a session token for a user
func (s *Service) GenerateToken(userID uint, email string, role Role) (string, error) {
	return generateToken(s.secretKey, s.expiry, userID, email, role)
}

// ValidateToken validates a session token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return validateToken(s.secretKey, tokenString)
}
