package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *TokenIssuer {
	t.Helper()
	keyPEM, err := GenerateSigningKeyPEM()
	require.NoError(t, err)

	issuer, err := NewTokenIssuer(keyPEM, ttl)
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer(t *testing.T) {
	t.Run("empty signing key", func(t *testing.T) {
		i, err := NewTokenIssuer("", time.Hour)
		require.Error(t, err)
		require.Nil(t, i)
		require.Equal(t, "token signing key not provided", err.Error())
	})

	t.Run("invalid PEM", func(t *testing.T) {
		i, err := NewTokenIssuer("invalid pem", time.Hour)
		require.Error(t, err)
		require.Nil(t, i)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	verifier := NewTokenVerifier(issuer.PublicKey())

	token, err := issuer.Issue(&models.User{ID: 12, TenantID: 3, Role: models.RoleAdmin, Email: "ops@example.com"})
	require.NoError(t, err)

	p, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, int64(12), p.UserID())
	require.Equal(t, int64(3), p.TenantID())
	require.Equal(t, models.RoleAdmin, p.Role())
}

func TestVerify_rejects(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	verifier := NewTokenVerifier(issuer.PublicKey())

	t.Run("expired token", func(t *testing.T) {
		expired := newTestIssuer(t, time.Hour)
		expired.ttl = -time.Minute
		token, err := expired.Issue(&models.User{ID: 1, TenantID: 1})
		require.NoError(t, err)

		_, err = NewTokenVerifier(expired.PublicKey()).Verify(token)
		require.True(t, errors.Is(err, ErrUnauthenticated))
	})

	t.Run("signed by another key", func(t *testing.T) {
		other := newTestIssuer(t, time.Hour)
		token, err := other.Issue(&models.User{ID: 1, TenantID: 1})
		require.NoError(t, err)

		_, err = verifier.Verify(token)
		require.True(t, errors.Is(err, ErrUnauthenticated))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodES256, &Claims{
			UserID:   1,
			TenantID: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(issuer.signingKey)
		require.NoError(t, err)

		_, err = verifier.Verify(signed)
		require.True(t, errors.Is(err, ErrUnauthenticated))
	})

	t.Run("missing tenant claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
			"uid": 1,
			"iss": Issuer,
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(issuer.signingKey)
		require.NoError(t, err)

		_, err = verifier.Verify(signed)
		require.True(t, errors.Is(err, models.ErrInvalidPrincipal))
	})

	t.Run("HMAC algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"uid": 1, "tid": 1, "iss": Issuer, "exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("secret-secret-secret-secret-1234"))
		require.NoError(t, err)

		_, err = verifier.Verify(signed)
		require.Error(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	mw := Middleware(NewTokenVerifier(issuer.PublicKey()))

	var got models.Principal
	var found bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := issuer.Issue(&models.User{ID: 5, TenantID: 6, Role: models.RoleStandard})
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
		require.True(t, found)
		require.Equal(t, int64(5), got.UserID())
		require.Equal(t, int64(6), got.TenantID())
	})
}

func TestPrincipalFromContext_missing(t *testing.T) {
	_, ok := PrincipalFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.False(t, ok)
}

func TestGenerateSigningKeyPEM(t *testing.T) {
	keyPEM, err := GenerateSigningKeyPEM()
	require.NoError(t, err)

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(keyPEM))
	require.NoError(t, err)
	require.Equal(t, "P-256", key.Params().Name)
}
