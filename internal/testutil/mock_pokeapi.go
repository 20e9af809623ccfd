// Package testutil provides testing utilities for the PokeAPI browser.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Species is one creature served by MockPokeAPI.
type Species struct {
	ID    int
	Name  string   // lowercase, as upstream sends it
	Types []string // lowercase, in slot order
	Blurb string   // English flavor text, may contain \n and \f
	Image string   // empty serves a null sprite
}

// MockResponse defines a fixed response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockPokeAPI is a configurable mock PokeAPI server for testing.
// It serves /api/v2/pokemon, /api/v2/pokemon/{id} and
// /api/v2/pokemon-species/{id} from a species fixture.
type MockPokeAPI struct {
	server *httptest.Server

	mu               sync.Mutex
	species          []Species
	handlers         map[string]http.HandlerFunc
	requestCount     int
	conditionalCount int
	pathCounts       map[string]int
	lastHeader       http.Header
}

// NewMockPokeAPI creates a mock server for the given species, served in order.
func NewMockPokeAPI(species []Species) *MockPokeAPI {
	mock := &MockPokeAPI{
		species:    species,
		handlers:   make(map[string]http.HandlerFunc),
		pathCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := normalizePath(r.URL.Path)

		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[path]++
		mock.lastHeader = r.Header.Clone()
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r, path)
	}))

	return mock
}

// BaseURL returns the API root to configure a client with.
func (m *MockPokeAPI) BaseURL() string {
	return m.server.URL + "/api/v2"
}

// Close shuts down the mock server.
func (m *MockPokeAPI) Close() {
	m.server.Close()
}

// SetHandler overrides the handler for a path such as "/api/v2/pokemon/4".
func (m *MockPokeAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[normalizePath(path)] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockPokeAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockPokeAPI) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// ConditionalCount returns the number of conditional requests.
func (m *MockPokeAPI) ConditionalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditionalCount
}

// RequestsFor returns how often a path was requested.
func (m *MockPokeAPI) RequestsFor(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pathCounts[normalizePath(path)]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockPokeAPI) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

func normalizePath(path string) string {
	return "/" + strings.Trim(path, "/")
}

func (m *MockPokeAPI) defaultHandler(w http.ResponseWriter, r *http.Request, path string) {
	base := "http://" + r.Host + "/api/v2"

	switch {
	case path == "/api/v2/pokemon":
		m.serveList(w, r, base)
	case strings.HasPrefix(path, "/api/v2/pokemon/"):
		m.serveResource(w, r, strings.TrimPrefix(path, "/api/v2/pokemon/"), func(s Species) any {
			return detailBody(s)
		})
	case strings.HasPrefix(path, "/api/v2/pokemon-species/"):
		m.serveResource(w, r, strings.TrimPrefix(path, "/api/v2/pokemon-species/"), func(s Species) any {
			return speciesBody(s)
		})
	default:
		http.NotFound(w, r)
	}
}

func (m *MockPokeAPI) serveList(w http.ResponseWriter, r *http.Request, base string) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	m.mu.Lock()
	all := m.species
	m.mu.Unlock()

	type result struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	body := struct {
		Count    int      `json:"count"`
		Next     *string  `json:"next"`
		Previous *string  `json:"previous"`
		Results  []result `json:"results"`
	}{Count: len(all), Results: []result{}}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	for i := offset; i < end; i++ {
		body.Results = append(body.Results, result{
			Name: all[i].Name,
			URL:  fmt.Sprintf("%s/pokemon/%d/", base, all[i].ID),
		})
	}
	if end < len(all) {
		next := fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", base, end, limit)
		body.Next = &next
	}
	if offset > 0 {
		prev := fmt.Sprintf("%s/pokemon?offset=%d&limit=%d", base, max(offset-limit, 0), limit)
		body.Previous = &prev
	}

	writeJSON(w, r, fmt.Sprintf(`"list-%d-%d"`, offset, limit), body)
}

func (m *MockPokeAPI) serveResource(w http.ResponseWriter, r *http.Request, idStr string, render func(Species) any) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	m.mu.Lock()
	var found *Species
	for i := range m.species {
		if m.species[i].ID == id {
			found = &m.species[i]
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, r, fmt.Sprintf(`"%s-%d"`, strings.Trim(r.URL.Path, "/"), id), render(*found))
}

// writeJSON answers like PokeAPI's CDN: long max-age, an ETag, and 304 for a
// matching If-None-Match.
func writeJSON(w http.ResponseWriter, r *http.Request, etag string, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400, s-maxage=86400")
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

func detailBody(s Species) any {
	type typeRef struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	type slot struct {
		Slot int     `json:"slot"`
		Type typeRef `json:"type"`
	}

	// Served in reverse slot order; clients must sort
	types := make([]slot, 0, len(s.Types))
	for i := len(s.Types) - 1; i >= 0; i-- {
		types = append(types, slot{Slot: i + 1, Type: typeRef{Name: s.Types[i]}})
	}

	var sprite *string
	if s.Image != "" {
		sprite = &s.Image
	}

	return map[string]any{
		"id":        s.ID,
		"name":      s.Name,
		"sprites":   map[string]any{"front_default": sprite},
		"types":     types,
		"abilities": []any{},
	}
}

func speciesBody(s Species) any {
	type flavor struct {
		FlavorText string            `json:"flavor_text"`
		Language   map[string]string `json:"language"`
		Version    map[string]string `json:"version"`
	}

	entries := []flavor{{
		FlavorText: "日本語のテキスト",
		Language:   map[string]string{"name": "ja"},
		Version:    map[string]string{"name": "red"},
	}}
	if s.Blurb != "" {
		entries = append(entries,
			flavor{FlavorText: s.Blurb, Language: map[string]string{"name": "en"}, Version: map[string]string{"name": "red"}},
			flavor{FlavorText: "A later English entry.", Language: map[string]string{"name": "en"}, Version: map[string]string{"name": "blue"}},
		)
	}

	return map[string]any{
		"id":                  s.ID,
		"flavor_text_entries": entries,
	}
}

// KantoStarters returns a small fixture with a mix of names and types.
func KantoStarters() []Species {
	return []Species{
		{ID: 1, Name: "bulbasaur", Types: []string{"grass", "poison"}, Blurb: "A strange seed was\nplanted on its\fback at birth.", Image: "https://img.example/1.png"},
		{ID: 2, Name: "ivysaur", Types: []string{"grass", "poison"}, Blurb: "When the bulb on\nits back grows large,\fit appears to lose\nthe ability to stand.", Image: "https://img.example/2.png"},
		{ID: 3, Name: "venusaur", Types: []string{"grass", "poison"}, Blurb: "The plant blooms\nwhen it is absorbing\fsolar energy."},
		{ID: 4, Name: "charmander", Types: []string{"fire"}, Blurb: "Obviously prefers\nhot places.", Image: "https://img.example/4.png"},
		{ID: 5, Name: "charmeleon", Types: []string{"fire"}, Blurb: "When it swings\nits burning tail,\fit elevates the\ntemperature."},
		{ID: 6, Name: "charizard", Types: []string{"fire", "flying"}, Blurb: "Spits fire that\nis hot enough to\fmelt boulders."},
		{ID: 7, Name: "squirtle", Types: []string{"water"}, Blurb: "After birth, its\nback swells and\fhardens into a\nshell."},
		{ID: 8, Name: "wartortle", Types: []string{"water"}, Blurb: "Often hides in\nwater to stalk\funwary prey."},
		{ID: 9, Name: "blastoise", Types: []string{"water"}, Blurb: "A brutal POKéMON\nwith pressurized\fwater jets."},
		{ID: 10, Name: "caterpie", Types: []string{"bug"}},
		{ID: 122, Name: "mr-mime", Types: []string{"psychic", "fairy"}, Blurb: "If interrupted while\nit is miming, it will\fslap around the\noffender."},
	}
}
