// ABOUTME: JWT inspection for stored access tokens
// ABOUTME: Reads the exp claim without verification; the client never holds the signing key

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenExpiry returns the expiration time carried by a JWT access token.
// ok is false when the token has no exp claim. Tokens that are not JWTs
// return ErrInvalidToken; callers treat those as opaque and unexpiring.
func TokenExpiry(tokenString string) (exp time.Time, ok bool, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	nd, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: exp: %v", ErrInvalidToken, err)
	}
	if nd == nil {
		return time.Time{}, false, nil
	}
	return nd.Time, true, nil
}

// CheckToken returns ErrExpiredToken when tokenString is a JWT whose exp is
// at or before now. Opaque tokens and tokens without exp pass.
func CheckToken(tokenString string, now time.Time) error {
	exp, ok, err := TokenExpiry(tokenString)
	if err != nil || !ok {
		return nil
	}
	if !now.Before(exp) {
		return ErrExpiredToken
	}
	return nil
}
