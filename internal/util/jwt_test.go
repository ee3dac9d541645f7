package util

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signHS256(t *testing.T, claims jwt.Claims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestValidateJWT_HS256(t *testing.T) {
	token := signHS256(t, Claims{
		Email: "parent@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "3b2f8c1e-0000-4000-8000-000000000001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	claims, err := ValidateJWT(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "3b2f8c1e-0000-4000-8000-000000000001", claims.Subject)
	assert.Equal(t, "parent@example.com", claims.Email)
}

func TestValidateJWT_Rejects(t *testing.T) {
	valid := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	t.Run("wrong secret", func(t *testing.T) {
		_, err := ValidateJWT(signHS256(t, valid, "other-secret"), testSecret)
		assert.Error(t, err)
	})
	t.Run("expired", func(t *testing.T) {
		expired := jwt.RegisteredClaims{Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
		_, err := ValidateJWT(signHS256(t, expired, testSecret), testSecret)
		assert.Error(t, err)
	})
	t.Run("no expiry", func(t *testing.T) {
		_, err := ValidateJWT(signHS256(t, jwt.RegisteredClaims{Subject: "user-1"}, testSecret), testSecret)
		assert.Error(t, err)
	})
	t.Run("no subject", func(t *testing.T) {
		noSub := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		_, err := ValidateJWT(signHS256(t, noSub, testSecret), testSecret)
		assert.Error(t, err)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := ValidateJWT("not-a-token", testSecret)
		assert.Error(t, err)
	})
}

func TestValidateJWT_ES256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Subject:   "user-es",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, pemKey)
	require.NoError(t, err)
	assert.Equal(t, "user-es", claims.Subject)

	// An HMAC token must not validate against a PEM key used as a secret.
	_, err = ValidateJWT(signHS256(t, jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}, "wrong"), pemKey)
	assert.Error(t, err)
}
