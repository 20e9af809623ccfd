// Package cache provides an optional Redis-backed HTTP response cache for
// PokeAPI requests.
//
// The cache sits in front of the transport only. The browser above it never
// sees cached data as a separate source; a cached response is simply a
// response that did not need to cross the network.
//
// - Freshness from Cache-Control max-age, falling back to Expires
// - ETag support for conditional revalidation (If-None-Match)
// - Last-Modified support (If-Modified-Since)
// - Stale entries kept for a revalidation window so a 304 can refresh them
// - Prometheus metrics for observability
// - Deterministic cache key generation
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient, time.Hour)
//
//	key := cache.KeyFromURL(req.URL)
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch from PokeAPI
//	case entry.IsExpired():
//		// revalidate
//	default:
//		// serve entry.Data
//	}
//
// # Conditional Requests
//
//	if cache.ShouldMakeConditionalRequest(entry) {
//		cache.AddConditionalHeaders(req, entry)
//		// PokeAPI answers 304 if the resource is unchanged
//	}
//
// # Metrics
//
//   - pokeapi_cache_hits_total{state} - Cache hits, fresh or stale
//   - pokeapi_cache_misses_total - Cache misses
//   - pokeapi_cache_size_bytes - Bytes written to Redis
//   - pokeapi_304_responses_total - Conditional request successes
//   - pokeapi_cache_errors_total{operation} - Cache operation errors
package cache
