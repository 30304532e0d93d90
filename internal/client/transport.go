package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// newTransport returns the client round tripper: bearer authentication in
// front of an HTTP cache. Ticket reads carry an ETag, so repeated reads
// revalidate with If-None-Match instead of refetching the body. The cache
// lives on disk under cacheDir when one is given and in memory otherwise.
func newTransport(token, cacheDir string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	var store httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		store = diskcache.New(cacheDir)
	}

	cache := &httpcache.Transport{
		Transport:           base,
		Cache:               store,
		MarkCachedResponses: true,
	}

	return &bearerTransport{token: token, next: cache}
}

// bearerTransport adds the access token to every request.
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.next.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(clone)
}

// FromCache reports whether resp was served from the local cache, possibly
// after the server confirmed it with a 304.
func FromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) == "1"
}
