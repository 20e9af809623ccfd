package client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
	"github.com/Sternrassler/pokeapi-client/pkg/ratelimit"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of transport errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// HTTPError represents an unexpected upstream status with its classification.
type HTTPError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("PokeAPI %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Message)
}

// classifyStatus maps an HTTP error status to its class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyError categorizes an error returned by a request attempt.
// Cancellation and local rate limit blocks are left unclassified so they
// are never retried.
func classifyError(err error) ErrorClass {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ""
	case errors.Is(err, ratelimit.ErrRateLimited):
		return ""
	case errors.As(err, &httpErr):
		return httpErr.ErrorClass
	default:
		return ErrorClassNetwork
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx errors will not change on retry
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// isOffline reports whether a transport error means the host is unreachable:
// a failed dial or a failed DNS lookup.
func isOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// toCatalogError converts a transport error into the catalog taxonomy.
func toCatalogError(err error) error {
	if err == nil {
		return nil
	}

	var ce *catalog.Error
	if errors.As(err, &ce) {
		return ce
	}

	var httpErr *HTTPError
	switch {
	case errors.As(err, &httpErr):
		return catalog.StatusError(httpErr.StatusCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return catalog.NewError(catalog.KindRequestFailed, err)
	case isOffline(err):
		return catalog.NewError(catalog.KindOffline, err)
	default:
		return catalog.NewError(catalog.KindRequestFailed, err)
	}
}
