// Package token decodes JWT payloads to read their expiry hint.
//
// No signature verification happens here: the backend is the sole verifier of
// the tokens it issued. Decoding exists only so the client can refresh
// proactively instead of waiting for a 401.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryBuffer is subtracted from a token's lifetime when deciding
// whether it is still usable. A token inside the buffer is treated as
// expiring, so a request never goes out with a token that dies mid-flight.
const DefaultExpiryBuffer = 30 * time.Second

// Claims is the decoded payload of a token. ExpiresAt and IssuedAt are zero
// when the corresponding claim is absent.
type Claims struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Raw       jwt.MapClaims
}

var parser = jwt.NewParser()

// Decode reads the payload segment of a three-part token. It performs no
// signature verification and returns an error for anything that is not a
// structurally valid JWT. It never panics.
func Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("decode token: empty string")
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, mapClaims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}

	claims := &Claims{Raw: mapClaims}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if id, ok := mapClaims["jti"].(string); ok {
		claims.ID = id
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}

// IsExpired reports whether the token is expired or expiring within buffer.
// Malformed tokens and tokens without an exp claim count as expired, which
// forces a refresh attempt rather than surfacing a distinct error.
func IsExpired(raw string, buffer time.Duration) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return claims.ExpiresAt.Before(time.Now().Add(buffer))
}
