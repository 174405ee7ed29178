// Package auth mints and verifies the HS256 session tokens carried by
// the web surface's session cookie.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pulseops/pulseguardian/internal/common"
)

// Claims is the session claim set: the registered claims plus the
// verified email the session belongs to.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// GenerateSessionToken mints a signed session token for email.
func GenerateSessionToken(email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Email: email,
	})

	return token.SignedString(secretKey)
}

// EmailFromSessionToken verifies the token and returns the session
// email. Expired, malformed, or forged tokens all come back as
// common.ErrInvalidToken.
func EmailFromSessionToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", common.ErrInvalidToken
	}
	if !token.Valid || claims.Email == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Email, nil
}
