package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Inspect] for tokens that are not a decodable
// JWT (opaque tokens, truncated values).
var ErrNotJWT = errors.New("token is not a jwt")

// Info is the unverified view of a token.
type Info struct {
	Username  string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasExpiry reports whether the token carried an exp claim.
func (i Info) HasExpiry() bool {
	return !i.ExpiresAt.IsZero()
}

// ExpiresWithin reports whether the token expires before now+d. Tokens
// without an exp claim never do.
func (i Info) ExpiresWithin(now time.Time, d time.Duration) bool {
	if !i.HasExpiry() {
		return false
	}
	return !i.ExpiresAt.After(now.Add(d))
}

// Inspect decodes tokenStr without verifying its signature.
func Inspect(tokenStr string) (Info, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return Info{}, ErrNotJWT
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}

	info := Info{Username: claims.Username}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	return info, nil
}
