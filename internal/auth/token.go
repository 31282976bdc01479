package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenLen is the hex-encoded length of a session token (32 bytes).
const SessionTokenLen = 64

var sessionTokenRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// GenerateSessionToken returns an opaque random token used as a session key.
// The token carries no claims; the session record lives server-side.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidSessionToken checks if a token matches the expected format.
func ValidSessionToken(token string) bool {
	return sessionTokenRegex.MatchString(token)
}

// Service token issuer/audience for BFF-to-API calls.
const (
	ServiceTokenIssuer   = "booklog-web"
	ServiceTokenAudience = "booklog-api"
)

// serviceClaims are the claims carried by a BFF service token.
type serviceClaims struct {
	jwt.RegisteredClaims
}

// SignServiceToken issues a short-lived HS256 token the BFF presents to the
// data API on every request.
func SignServiceToken(secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, serviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ServiceTokenIssuer,
			Audience:  jwt.ClaimStrings{ServiceTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// VerifyServiceToken validates a service token's signature, issuer,
// audience and expiry.
func VerifyServiceToken(tokenString string, secret []byte) error {
	claims := &serviceClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(ServiceTokenIssuer),
		jwt.WithAudience(ServiceTokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}
