package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/wolfeidau/tenantdesk/internal/models"
)

type cachedPrincipal struct {
	principal models.Principal
	expiresAt time.Time
}

// CachingVerifier remembers the principal behind recently verified tokens so
// repeat requests skip the ECDSA signature check. An entry never outlives
// the token it was built from.
type CachingVerifier struct {
	next   *TokenVerifier
	cache  *ristretto.Cache[string, cachedPrincipal]
	maxTTL time.Duration
	now    func() time.Time
}

// NewCachingVerifier wraps next with a cache of up to size tokens, each kept
// for at most maxTTL.
func NewCachingVerifier(next *TokenVerifier, size int64, maxTTL time.Duration) (*CachingVerifier, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	if maxTTL <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", maxTTL)
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, cachedPrincipal]{
		NumCounters: size * 10,
		MaxCost:     size,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}

	return &CachingVerifier{next: next, cache: cache, maxTTL: maxTTL, now: time.Now}, nil
}

// Verify returns the cached principal for tokenString or verifies it.
// Failed verifications are not cached.
func (v *CachingVerifier) Verify(tokenString string) (models.Principal, error) {
	key := tokenKey(tokenString)
	now := v.now()

	if hit, ok := v.cache.Get(key); ok && now.Before(hit.expiresAt) {
		return hit.principal, nil
	}

	p, expiresAt, err := v.next.verify(tokenString)
	if err != nil {
		return models.Principal{}, err
	}

	if ttl := min(expiresAt.Sub(now), v.maxTTL); ttl > 0 {
		v.cache.SetWithTTL(key, cachedPrincipal{principal: p, expiresAt: expiresAt}, 1, ttl)
	}

	return p, nil
}

// Close stops the cache's background goroutines.
func (v *CachingVerifier) Close() {
	v.cache.Close()
}

func tokenKey(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
