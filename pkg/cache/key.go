package cache

import (
	"net/url"
	"slices"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "artic"

// CacheKey identifies a cached catalog response.
type CacheKey struct {
	// Endpoint is the request path relative to the catalog base URL, e.g. "/artworks".
	Endpoint string

	// QueryParams are the request query parameters.
	QueryParams url.Values
}

// String renders a deterministic key, e.g. "artic:artworks:limit=10:page=2".
// Query parameters are sorted by name; repeated values are kept in order.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(KeyPrefix)

	if endpoint := strings.Trim(k.Endpoint, "/"); endpoint != "" {
		b.WriteByte(':')
		b.WriteString(endpoint)
	}

	names := make([]string, 0, len(k.QueryParams))
	for name := range k.QueryParams {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		for _, v := range k.QueryParams[name] {
			b.WriteByte(':')
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(v)
		}
	}

	return b.String()
}
