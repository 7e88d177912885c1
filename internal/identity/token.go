package identity

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/tastekeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims includes the registered claims plus the owner identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// TokenProvider derives the owner identity from signed access tokens.
// It embeds Static, so Current/Watch/SignOut behave as usual once a token
// has been accepted.
type TokenProvider struct {
	*Static
	secret []byte
}

// NewTokenProvider returns a signed-out provider validating HS256 tokens
// with secret.
func NewTokenProvider(secret []byte) *TokenProvider {
	return &TokenProvider{Static: NewStatic(), secret: secret}
}

// SignInToken validates tokenString and signs in as the owner named by its
// UserID claim. Returns the owner id on success.
func (p *TokenProvider) SignInToken(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	p.SignIn(claims.UserID)
	return claims.UserID, nil
}

// GenerateToken issues an HS256 token naming userID, valid for
// validityDuration. Used by tests and the dev tooling that mints tokens.
func GenerateToken(userID string, secret []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		UserID: userID,
	})

	return token.SignedString(secret)
}
