package admin

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry derives the expiry instant of a bearer token from its JWT
// exp claim, without verifying the signature. Verification belongs to the
// server; the client only needs the instant for display and refresh
// scheduling. Returns false when the token is not a JWT or carries no exp.
func TokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
