package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

// Verifier turns a bearer token into the principal it was issued to.
type Verifier interface {
	Verify(tokenString string) (models.Principal, error)
}

// TokenVerifier validates access tokens and turns their claims into a principal.
type TokenVerifier struct {
	publicKey *ecdsa.PublicKey
}

// NewTokenVerifier creates a verifier for tokens signed by the matching private key.
func NewTokenVerifier(publicKey *ecdsa.PublicKey) *TokenVerifier {
	return &TokenVerifier{publicKey: publicKey}
}

// Verify checks the signature, issuer and expiry of tokenString and builds a
// principal from the raw uid, tid and role claims.
func (v *TokenVerifier) Verify(tokenString string) (models.Principal, error) {
	p, _, err := v.verify(tokenString)
	return p, err
}

// verify is Verify plus the token's expiry.
func (v *TokenVerifier) verify(tokenString string) (models.Principal, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return models.Principal{}, time.Time{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if !token.Valid {
		return models.Principal{}, time.Time{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, time.Time{}, errors.New("invalid claims")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return models.Principal{}, time.Time{}, fmt.Errorf("%w: missing expiry", ErrUnauthenticated)
	}

	role, _ := claims["role"].(string)

	p, err := models.NewPrincipal(claims["uid"], claims["tid"], role)
	if err != nil {
		return models.Principal{}, time.Time{}, err
	}

	return p, exp.Time, nil
}
