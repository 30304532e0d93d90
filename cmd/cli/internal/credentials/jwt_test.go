package credentials

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("reads exp", func(t *testing.T) {
		got, err := TokenExpiry(signedToken(t, jwt.MapClaims{"exp": exp.Unix(), "uid": 1}))
		require.NoError(t, err)
		assert.True(t, exp.Equal(got))
	})

	t.Run("missing exp", func(t *testing.T) {
		_, err := TokenExpiry(signedToken(t, jwt.MapClaims{"uid": 1}))
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := TokenExpiry("not.a.token")
		require.Error(t, err)
	})
}
