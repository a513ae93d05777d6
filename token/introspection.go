package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InspectExpiry returns the exp claim of a JWT access token without verifying
// its signature. Opaque tokens report ok=false.
func InspectExpiry(rawToken string) (exp time.Time, ok bool) {
	if strings.Count(rawToken, ".") != 2 {
		return time.Time{}, false
	}
	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}
