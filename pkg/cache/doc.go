// Package cache provides the Redis-backed HTTP response cache used by the
// catalog client.
//
// Entries are keyed by endpoint path and query, carry the validators the
// catalog sent (ETag, Last-Modified), and live in Redis until their
// freshness lifetime runs out. The client never answers a page request from
// the cache alone: a cached entry only turns the next request into a
// conditional one, and the stored body is reused when the catalog answers
// 304 Not Modified.
//
// # Basic Usage
//
//	manager := cache.NewManager(redis.NewClient(&redis.Options{Addr: "localhost:6379"}))
//
//	key := cache.CacheKey{
//		Endpoint:    "/artworks",
//		QueryParams: url.Values{"page": {"2"}, "limit": {"10"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// plain request
//	}
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//	}
//
// # Freshness
//
// Cache-Control no-store disables caching for a response. Otherwise the
// lifetime comes from Cache-Control max-age, then Expires, then DefaultTTL.
//
// # Metrics
//
//   - artic_cache_hits_total{layer="redis"}
//   - artic_cache_misses_total
//   - artic_cache_size_bytes{layer="redis"}
//   - artic_conditional_requests_total
//   - artic_304_responses_total
//   - artic_cache_errors_total{operation}
package cache
