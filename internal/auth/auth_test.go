package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestUserTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(testSecret)

	token, err := svc.SignUserToken("user-123", time.Hour)
	require.NoError(t, err)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.UserID)
	assert.Empty(t, identity.Service)
	assert.False(t, identity.IsService())
}

func TestServiceTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(testSecret)

	token, err := svc.SignServiceToken("user-service", time.Hour)
	require.NoError(t, err)

	identity, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-service", identity.Service)
	assert.Empty(t, identity.UserID)
	assert.True(t, identity.IsService())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("other-secret").SignUserToken("user-123", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService(testSecret).Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(testSecret)

	token, err := svc.SignUserToken("user-123", -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewTokenService(testSecret)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "not a jwt", token: "not-a-token"},
		{name: "truncated", token: "eyJhbGciOiJIUzI1NiJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestVerifyRejectsUnexpectedSigningMethod(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "user-123",
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService(testSecret).Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsTokenWithoutIdentity(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenService(testSecret).Verify(signed)
	assert.Error(t, err)
}
