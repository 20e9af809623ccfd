// Package metrics exposes the Prometheus metrics of the PokeAPI client and
// the page coordinator over HTTP.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, coordinator) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves /metrics from the default gatherer and a /health probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// ListenAndServe serves Handler on addr until ctx is cancelled, then shuts
// the server down gracefully. It returns nil after a clean shutdown.
func ListenAndServe(ctx context.Context, addr string, logger zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}

	logger.Info().Msg("Metrics server stopped")
	return nil
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - pokeapi_rate_limit_remaining (Gauge): Requests remaining in the upstream window
//   - pokeapi_rate_limit_blocks_total (Counter): Requests blocked until the window resets
//   - pokeapi_rate_limit_throttles_total (Counter): Requests delayed because few remain
//
// Cache Metrics (pkg/cache):
//   - pokeapi_cache_hits_total{state} (Counter): Cache hits, fresh or stale
//   - pokeapi_cache_misses_total (Counter): Cache misses
//   - pokeapi_cache_size_bytes (Counter): Bytes written to the cache
//   - pokeapi_304_responses_total (Counter): Stale entries revalidated by 304 Not Modified
//   - pokeapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - pokeapi_requests_total{endpoint, status} (Counter): Requests by resource and outcome
//   - pokeapi_request_duration_seconds{endpoint} (Histogram): Request duration by resource
//   - pokeapi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - pokeapi_pages_total{outcome} (Counter): Hydrated list pages by outcome
//   - pokeapi_page_duration_seconds (Histogram): Time to fetch and hydrate one page
//
// Retry Metrics (pkg/client):
//   - pokeapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - pokeapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - pokeapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Coordinator Metrics (pkg/coordinator):
//   - pokeapi_coordinator_tail_events_total{decision} (Counter): Tail events by gate decision
//   - pokeapi_coordinator_fetches_total{mode, outcome} (Counter): Page and top-up fetches
//   - pokeapi_coordinator_topup_pages (Histogram): Upstream pages consumed per top-up
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pokeapi_cache_hits_total[5m])) /
//   (sum(rate(pokeapi_cache_hits_total[5m])) + sum(rate(pokeapi_cache_misses_total[5m])))
//
//   # Tail events ignored because a fetch was already running
//   rate(pokeapi_coordinator_tail_events_total{decision="loading"}[5m])
//
//   # P95 page hydration latency
//   histogram_quantile(0.95, rate(pokeapi_page_duration_seconds_bucket[5m]))
