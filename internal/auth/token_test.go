package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invenops/ticketing/internal/domain"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(subject string, role domain.Role) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestVerifyValidToken(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	requester, err := v.Verify(signToken(t, testSecret, validClaims("42", domain.RoleAdmin)))
	require.NoError(t, err)
	assert.Equal(t, int64(42), requester.UserID)
	assert.Equal(t, domain.RoleAdmin, requester.Role)
	assert.True(t, requester.IsAdmin())

	requester, err = v.Verify(signToken(t, testSecret, validClaims("7", domain.RoleUser)))
	require.NoError(t, err)
	assert.False(t, requester.IsAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	_, err := v.Verify(signToken(t, "another-secret", validClaims("42", domain.RoleUser)))
	require.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	claims := validClaims("42", domain.RoleUser)
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := v.Verify(signToken(t, testSecret, claims))
	require.Error(t, err)
}

func TestVerifyRejectsBadClaims(t *testing.T) {
	v := NewTokenVerifier(testSecret)

	_, err := v.Verify(signToken(t, testSecret, validClaims("not-a-number", domain.RoleUser)))
	require.Error(t, err)

	_, err = v.Verify(signToken(t, testSecret, validClaims("42", "SUPERUSER")))
	require.Error(t, err)

	_, err = v.Verify("not.a.token")
	require.Error(t, err)
}

func TestVerifyRejectsWrongSigningMethod(t *testing.T) {
	v := NewTokenVerifier(testSecret)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("42", domain.RoleUser))
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(signed)
	require.Error(t, err)
}
