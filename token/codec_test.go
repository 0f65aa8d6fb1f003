package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	raw := mintToken(t, jwt.MapClaims{
		"sub": "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		"jti": "abc-123",
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", claims.Subject)
	assert.Equal(t, "abc-123", claims.ID)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestDecodeNeverPanics(t *testing.T) {
	garbagePayload := base64.RawURLEncoding.EncodeToString([]byte("not json at all"))

	cases := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"plain text", "definitely not a jwt"},
		{"two segments", "aGVhZGVy.cGF5bG9hZA"},
		{"invalid base64 payload", "aGVhZGVy.!!!!.c2ln"},
		{"valid base64 garbage payload", "aGVhZGVy." + garbagePayload + ".c2ln"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, err := Decode(tc.raw)
			assert.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, IsExpired(tc.raw, DefaultExpiryBuffer))
		})
	}
}

func TestIsExpired(t *testing.T) {
	t.Run("valid token outside buffer", func(t *testing.T) {
		raw := mintToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
		assert.False(t, IsExpired(raw, DefaultExpiryBuffer))
	})

	t.Run("already expired", func(t *testing.T) {
		raw := mintToken(t, jwt.MapClaims{"exp": time.Now().Add(-10 * time.Second).Unix()})
		assert.True(t, IsExpired(raw, DefaultExpiryBuffer))
	})

	t.Run("expiring inside buffer", func(t *testing.T) {
		raw := mintToken(t, jwt.MapClaims{"exp": time.Now().Add(10 * time.Second).Unix()})
		assert.True(t, IsExpired(raw, DefaultExpiryBuffer))
		assert.False(t, IsExpired(raw, 0))
	})

	t.Run("missing exp claim", func(t *testing.T) {
		raw := mintToken(t, jwt.MapClaims{"sub": "SP123"})
		assert.True(t, IsExpired(raw, DefaultExpiryBuffer))
	})
}
