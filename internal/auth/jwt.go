package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims this service cares about: the registered set
// plus the plant role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	errEmptyToken  = errors.New("auth: empty token")
	errEmptySecret = errors.New("auth: empty secret")
)

// ParseJWT validates an HS256 token against secret and returns its claims.
// Tokens must carry a subject and a known role; expiry is enforced by the
// parser's registered-claims validation.
func ParseJWT(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errEmptyToken
	}
	if len(secret) == 0 {
		return nil, errEmptySecret
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("auth: missing subject")
	}
	if _, ok := NormalizeRole(claims.Role); !ok {
		return nil, errors.New("auth: unknown role")
	}
	return claims, nil
}
