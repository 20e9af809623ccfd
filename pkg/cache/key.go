package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key identifies a cached PokeAPI response.
type Key struct {
	// Host is the upstream host, so mirrors and test servers never share entries
	Host string

	// Path is the resource path (e.g., "/api/v2/pokemon/1/")
	Path string

	// Query are the query parameters (e.g., {"limit": "20", "offset": "0"})
	Query url.Values
}

// KeyFromURL builds the key for a request URL.
func KeyFromURL(u *url.URL) Key {
	return Key{
		Host:  u.Host,
		Path:  u.Path,
		Query: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: pokeapi:host/path:query1=val1:query2=val2
//
// Example:
//
//	pokeapi:pokeapi.co/api/v2/pokemon:limit=20:offset=40
func (k Key) String() string {
	parts := []string{"pokeapi"}

	resource := strings.Trim(k.Host+"/"+strings.Trim(k.Path, "/"), "/")
	if resource != "" {
		parts = append(parts, resource)
	}

	// Sorted for determinism
	if len(k.Query) > 0 {
		names := make([]string, 0, len(k.Query))
		for name := range k.Query {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Query.Get(name)))
		}
	}

	return strings.Join(parts, ":")
}
