package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

// Issuer is the iss claim of every token issued by this service.
const Issuer = "tenantdesk"

// Claims are the custom claims carried by an access token.
type Claims struct {
	UserID   int64  `json:"uid"`
	TenantID int64  `json:"tid"`
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs access tokens with an ECDSA P-256 key.
type TokenIssuer struct {
	signingKey *ecdsa.PrivateKey
	ttl        time.Duration
}

// NewTokenIssuer creates an issuer from a PEM-encoded ECDSA private key.
func NewTokenIssuer(signingKeyPEM string, ttl time.Duration) (*TokenIssuer, error) {
	if signingKeyPEM == "" {
		return nil, errors.New("token signing key not provided")
	}

	signingKey, err := jwt.ParseECPrivateKeyFromPEM([]byte(signingKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &TokenIssuer{signingKey: signingKey, ttl: ttl}, nil
}

// PublicKey returns the key used to verify tokens from this issuer.
func (i *TokenIssuer) PublicKey() *ecdsa.PublicKey {
	return &i.signingKey.PublicKey
}

// Issue creates a signed token for the given user.
func (i *TokenIssuer) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     string(user.Role),
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	return token.SignedString(i.signingKey)
}

// GenerateSigningKeyPEM creates a new P-256 private key encoded as PEM.
// Used for development when no key is configured.
func GenerateSigningKeyPEM() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}
