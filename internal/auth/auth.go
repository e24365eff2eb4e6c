package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "nimbus/pkg/errors"
)

// Identity is what the rest of the system sees after verification: either a
// user or a calling service, never both.
type Identity struct {
	UserID  string
	Service string
}

func (i Identity) IsService() bool {
	return i.Service != ""
}

// Verifier is the narrow boundary the handlers depend on; the token format
// stays encapsulated here.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type TokenService struct {
	secret []byte
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

func (s *TokenService) Verify(token string) (Identity, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, pkgerrors.ErrUnauthorized.WithCause(err).
			WithDetail("message", "invalid or expired token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, pkgerrors.ErrUnauthorized.WithDetail("message", "invalid token claims")
	}

	identity := Identity{}
	if service, ok := claims["service"].(string); ok {
		identity.Service = service
	}
	if userID, ok := claims["userId"].(string); ok {
		identity.UserID = userID
	}

	if identity.UserID == "" && identity.Service == "" {
		return Identity{}, pkgerrors.ErrUnauthorized.WithDetail("message", "token carries no identity")
	}
	return identity, nil
}

func (s *TokenService) SignServiceToken(serviceName string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"service": serviceName,
		"type":    "service",
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *TokenService) SignUserToken(userID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
