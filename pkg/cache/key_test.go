package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "path only",
			key:  Key{Path: "/api/v2/pokemon/1/"},
			want: "pokeapi:api/v2/pokemon/1",
		},
		{
			name: "host and path",
			key:  Key{Host: "pokeapi.co", Path: "/api/v2/pokemon-species/25/"},
			want: "pokeapi:pokeapi.co/api/v2/pokemon-species/25",
		},
		{
			name: "query params sorted",
			key: Key{
				Host:  "pokeapi.co",
				Path:  "/api/v2/pokemon",
				Query: url.Values{"offset": []string{"40"}, "limit": []string{"20"}},
			},
			want: "pokeapi:pokeapi.co/api/v2/pokemon:limit=20:offset=40",
		},
		{
			name: "empty key",
			key:  Key{},
			want: "pokeapi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	key := Key{
		Path:  "/api/v2/pokemon",
		Query: url.Values{"a": []string{"1"}, "b": []string{"2"}, "c": []string{"3"}},
	}

	first := key.String()
	for i := 0; i < 100; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q != %q", got, first)
		}
	}
}

func TestKeyFromURL(t *testing.T) {
	u, err := url.Parse("https://pokeapi.co/api/v2/pokemon?limit=20&offset=0")
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}

	got := KeyFromURL(u).String()
	want := "pokeapi:pokeapi.co/api/v2/pokemon:limit=20:offset=0"
	if got != want {
		t.Errorf("KeyFromURL().String() = %q, want %q", got, want)
	}
}
