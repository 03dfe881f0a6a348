package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func generateKeyPEMs(t *testing.T) (privatePEM, publicPEM string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privateDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)

	publicDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateDER}))
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER}))
	return privatePEM, publicPEM
}

func newTenant() Tenant {
	return Tenant{OrgID: uuid.Must(uuid.NewV7()), UserID: uuid.Must(uuid.NewV7())}
}

func TestNewVerifier(t *testing.T) {
	t.Run("empty public key", func(t *testing.T) {
		v, err := NewVerifier("")
		require.Error(t, err)
		require.Nil(t, v)
		require.Equal(t, "JWT public key not provided", err.Error())
	})

	t.Run("invalid PEM", func(t *testing.T) {
		v, err := NewVerifier("invalid pem")
		require.Error(t, err)
		require.Nil(t, v)
	})

	t.Run("valid public key PEM", func(t *testing.T) {
		_, publicPEM := generateKeyPEMs(t)
		v, err := NewVerifier(publicPEM)
		require.NoError(t, err)
		require.NotNil(t, v)
	})
}

func TestVerify(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)

	v, err := NewVerifier(publicPEM)
	require.NoError(t, err)

	t.Run("issued token round trips the tenant", func(t *testing.T) {
		tenant := newTenant()

		token, err := IssueToken(privatePEM, tenant, time.Hour)
		require.NoError(t, err)

		got, err := v.Verify(token)
		require.NoError(t, err)
		require.Equal(t, tenant, got)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := IssueToken(privatePEM, newTenant(), -time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("token signed by another key", func(t *testing.T) {
		otherPrivatePEM, _ := generateKeyPEMs(t)

		token, err := IssueToken(otherPrivatePEM, newTenant(), time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.Error(t, err)
	})

	t.Run("token signed with wrong algorithm", func(t *testing.T) {
		claims := &TenantClaims{
			Org: uuid.Must(uuid.NewV7()).String(),
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.Must(uuid.NewV7()).String(),
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		// Sign with HS256 instead of ES256
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.Error(t, err)
	})

	t.Run("missing org claim", func(t *testing.T) {
		signingKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(privatePEM))
		require.NoError(t, err)

		claims := &jwt.RegisteredClaims{
			Subject:   uuid.Must(uuid.NewV7()).String(),
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(signingKey)
		require.NoError(t, err)

		_, err = v.Verify(token)
		require.ErrorContains(t, err, "missing org claim")
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := v.Verify("invalid.token.string")
		require.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	privatePEM, publicPEM := generateKeyPEMs(t)

	v, err := NewVerifier(publicPEM)
	require.NoError(t, err)

	var seen Tenant
	var authenticated bool
	handler := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, authenticated = TenantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("health check bypasses auth", func(t *testing.T) {
		authenticated = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.False(t, authenticated)
	})

	t.Run("missing bearer token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/entries", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token sets tenant", func(t *testing.T) {
		tenant := newTenant()
		token, err := IssueToken(privatePEM, tenant, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.True(t, authenticated)
		require.Equal(t, tenant, seen)
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
