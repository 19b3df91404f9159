package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shanialy/HRM/internal/core/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret")
	user := &domain.User{
		ID:         uuid.New(),
		Role:       domain.RoleEmployee,
		Department: "engineering",
	}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, domain.RoleEmployee, principal.Role)
	assert.Equal(t, "engineering", principal.Department)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	user := &domain.User{ID: uuid.New(), Role: domain.RoleAdmin}

	token, err := NewTokenService("secret-a").GenerateToken(user)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").VerifyToken(token)
	assert.Error(t, err)
}

func TestTokenRejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret")

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.VerifyToken(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestTokenRejectsNonUUIDSubject(t *testing.T) {
	// A token from the legacy issuer carried emails as subjects; the
	// verifier must not map those onto a principal.
	svc := NewTokenService("test-secret")
	claims := jwt.MapClaims{
		"sub": "someone@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.Error(t, err)
}
