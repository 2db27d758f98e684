// Package auth consumes the session tokens issued by the platform's identity
// service. This service never authenticates anyone itself; it only verifies
// the signature and extracts the opaque (user id, role) pair every controller
// call is threaded with.
package auth

import (
	"errors"
	"strconv"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/invenops/ticketing/internal/domain"
)

// TokenVerifier validates externally issued JWTs.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier around the shared signing secret.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Claims describes the JWT payload the identity service issues.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verify parses the token and returns the requester it identifies.
func (v *TokenVerifier) Verify(tokenStr string) (domain.Requester, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Requester{}, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Requester{}, errors.New("invalid token claims")
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.Requester{}, errors.New("invalid subject")
	}
	if claims.Role != domain.RoleUser && claims.Role != domain.RoleAdmin {
		return domain.Requester{}, errors.New("unknown role")
	}
	return domain.Requester{UserID: userID, Role: claims.Role}, nil
}
