package client

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/Sternrassler/pokeapi-client/internal/testutil"
	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
)

func newMockClient(t *testing.T) (*Client, *testutil.MockPokeAPI) {
	t.Helper()

	mock := testutil.NewMockPokeAPI(testutil.KantoStarters())
	t.Cleanup(mock.Close)

	return newTestClient(t, mock.BaseURL()), mock
}

func recordIDs(records []catalog.Record) []int {
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestFetchPage_HydratesRecords(t *testing.T) {
	client, mock := newMockClient(t)

	page, err := client.FetchPage(context.Background(), 0, 4)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if got := recordIDs(page.Records); !reflect.DeepEqual(got, []int{1, 2, 3, 4}) {
		t.Errorf("record ids = %v, want [1 2 3 4]", got)
	}
	if page.NextOffset == nil || *page.NextOffset != 4 {
		t.Errorf("NextOffset = %v, want 4", page.NextOffset)
	}
	if page.TotalCount != 11 {
		t.Errorf("TotalCount = %d, want 11", page.TotalCount)
	}

	bulbasaur := page.Records[0]
	want := catalog.Record{
		ID:       1,
		Name:     "Bulbasaur",
		Types:    []string{"Grass", "Poison"},
		ImageURL: "https://img.example/1.png",
		Blurb:    "A strange seed was planted on its back at birth.",
	}
	if !reflect.DeepEqual(bulbasaur, want) {
		t.Errorf("Records[0] = %+v, want %+v", bulbasaur, want)
	}

	if venusaur := page.Records[2]; venusaur.ImageURL != "" {
		t.Errorf("null sprite should give empty ImageURL, got %q", venusaur.ImageURL)
	}

	// One list call plus detail and species per entry
	if got := mock.RequestCount(); got != 1+2*4 {
		t.Errorf("RequestCount = %d, want %d", got, 1+2*4)
	}
	if ua := mock.LastRequestHeader().Get("User-Agent"); ua == "" {
		t.Error("User-Agent header missing")
	}
}

func TestFetchPage_LastPage(t *testing.T) {
	client, _ := newMockClient(t)

	page, err := client.FetchPage(context.Background(), 8, 5)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if got := recordIDs(page.Records); !reflect.DeepEqual(got, []int{9, 10, 122}) {
		t.Errorf("record ids = %v, want [9 10 122]", got)
	}
	if page.HasNext() {
		t.Errorf("NextOffset = %v, want nil on the last page", *page.NextOffset)
	}

	caterpie := page.Records[1]
	if caterpie.Blurb != "" {
		t.Errorf("Blurb without English entry = %q, want empty", caterpie.Blurb)
	}

	mrMime := page.Records[2]
	if mrMime.Name != "Mr-Mime" {
		t.Errorf("Name = %q, want Mr-Mime", mrMime.Name)
	}
	if !reflect.DeepEqual(mrMime.Types, []string{"Psychic", "Fairy"}) {
		t.Errorf("Types = %v, want slot order [Psychic Fairy]", mrMime.Types)
	}
}

func TestFetchPage_PastTheEnd(t *testing.T) {
	client, _ := newMockClient(t)

	page, err := client.FetchPage(context.Background(), 50, 20)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if len(page.Records) != 0 {
		t.Errorf("len(Records) = %d, want 0", len(page.Records))
	}
	if page.HasNext() {
		t.Error("page past the end should have no successor")
	}
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	client, mock := newMockClient(t)

	tests := []struct {
		name   string
		offset int
		limit  int
	}{
		{"negative offset", -1, 20},
		{"zero limit", 0, 0},
		{"limit above upstream maximum", 0, DefaultMaxPageLimit + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.FetchPage(context.Background(), tt.offset, tt.limit)
			if kind := catalog.KindOf(err); kind != catalog.KindInvalidURL {
				t.Errorf("KindOf(err) = %v, want %v (err = %v)", kind, catalog.KindInvalidURL, err)
			}
		})
	}

	if got := mock.RequestCount(); got != 0 {
		t.Errorf("RequestCount = %d, invalid arguments must not reach the network", got)
	}
}

func TestFetchPage_Errors(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		response     testutil.MockResponse
		expectedKind catalog.ErrorKind
		expectedMsg  string
	}{
		{
			name:         "list not found",
			path:         "/api/v2/pokemon",
			response:     testutil.MockResponse{StatusCode: http.StatusNotFound, Body: "Not Found"},
			expectedKind: catalog.KindInvalidResponse,
			expectedMsg:  "The server responded with an unexpected status code: 404.",
		},
		{
			name:         "list server error after retries",
			path:         "/api/v2/pokemon",
			response:     testutil.MockResponse{StatusCode: http.StatusInternalServerError},
			expectedKind: catalog.KindInvalidResponse,
			expectedMsg:  "The server responded with an unexpected status code: 500.",
		},
		{
			name:         "detail is not json",
			path:         "/api/v2/pokemon/3",
			response:     testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"id": `},
			expectedKind: catalog.KindDecodingFailed,
		},
		{
			name:         "species has empty body",
			path:         "/api/v2/pokemon-species/2",
			response:     testutil.MockResponse{StatusCode: http.StatusOK},
			expectedKind: catalog.KindNoData,
			expectedMsg:  "The server returned no data.",
		},
		{
			name:         "one entry missing fails the page",
			path:         "/api/v2/pokemon/4",
			response:     testutil.MockResponse{StatusCode: http.StatusNotFound},
			expectedKind: catalog.KindInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newMockClient(t)
			mock.SetResponse(tt.path, tt.response)

			page, err := client.FetchPage(context.Background(), 0, 4)
			if err == nil {
				t.Fatalf("FetchPage() = %+v, want error", page)
			}

			var ce *catalog.Error
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not a *catalog.Error: %v", err, err)
			}
			if ce.Kind != tt.expectedKind {
				t.Errorf("Kind = %v, want %v (err = %v)", ce.Kind, tt.expectedKind, err)
			}
			if tt.expectedMsg != "" && ce.Error() != tt.expectedMsg {
				t.Errorf("Error() = %q, want %q", ce.Error(), tt.expectedMsg)
			}
		})
	}
}

func TestFetchPage_ServerErrorIsRetried(t *testing.T) {
	client, mock := newMockClient(t)
	mock.SetResponse("/api/v2/pokemon", testutil.MockResponse{StatusCode: http.StatusServiceUnavailable})

	_, err := client.FetchPage(context.Background(), 0, 4)
	if catalog.KindOf(err) != catalog.KindInvalidResponse {
		t.Fatalf("KindOf(err) = %v, want InvalidResponse", catalog.KindOf(err))
	}

	if got := mock.RequestsFor("/api/v2/pokemon"); got != 3 {
		t.Errorf("list requested %d times, want 3 attempts", got)
	}
}

func TestFetchPage_RetryAfterStopsRetries(t *testing.T) {
	client, mock := newMockClient(t)
	mock.SetResponse("/api/v2/pokemon", testutil.MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "30"},
	})

	_, err := client.FetchPage(context.Background(), 0, 4)
	if catalog.KindOf(err) != catalog.KindRequestFailed {
		t.Fatalf("KindOf(err) = %v, want RequestFailed (err = %v)", catalog.KindOf(err), err)
	}

	if got := mock.RequestsFor("/api/v2/pokemon"); got != 1 {
		t.Errorf("list requested %d times, the tracker should block retries", got)
	}
	if state := client.RateLimitState(); !state.NeedsCriticalBlock() {
		t.Errorf("rate limit state %+v should block", state)
	}
}

func TestFetchPage_Offline(t *testing.T) {
	mock := testutil.NewMockPokeAPI(testutil.KantoStarters())
	baseURL := mock.BaseURL()
	mock.Close()

	client := newTestClient(t, baseURL)

	_, err := client.FetchPage(context.Background(), 0, 4)
	if kind := catalog.KindOf(err); kind != catalog.KindOffline {
		t.Fatalf("KindOf(err) = %v, want Offline (err = %v)", kind, err)
	}
	if want := "You appear to be offline. Please check your connection."; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	client, _ := newMockClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchPage(ctx, 0, 4)
	if kind := catalog.KindOf(err); kind != catalog.KindRequestFailed {
		t.Errorf("KindOf(err) = %v, want RequestFailed (err = %v)", kind, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("context.Canceled should stay in the chain, got %v", err)
	}
}

func TestParseNextOffset(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name     string
		next     *string
		expected *int
	}{
		{"null", nil, nil},
		{"empty", str(""), nil},
		{"offset present", str("https://pokeapi.co/api/v2/pokemon?offset=40&limit=20"), catalog.Offset(40)},
		{"offset missing", str("https://pokeapi.co/api/v2/pokemon?limit=20"), nil},
		{"offset not a number", str("https://pokeapi.co/api/v2/pokemon?offset=abc"), nil},
		{"unparseable url", str("://bad"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseNextOffset(tt.next)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("parseNextOffset() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNormalizeBlurb(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"form\ffeed", "form feed"},
		{"  \nedges\f ", "edges"},
	}

	for _, tt := range tests {
		if got := normalizeBlurb(tt.input); got != tt.expected {
			t.Errorf("normalizeBlurb(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"bulbasaur", "Bulbasaur"},
		{"mr-mime", "Mr-Mime"},
		{"grass", "Grass"},
	}

	for _, tt := range tests {
		if got := titleCase(tt.input); got != tt.expected {
			t.Errorf("titleCase(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	client := newTestClient(t, "https://pokeapi.co/api/v2/")

	got := client.endpointURL("pokemon-species/25", nil)
	if want := "https://pokeapi.co/api/v2/pokemon-species/25"; got != want {
		t.Errorf("endpointURL() = %q, want %q", got, want)
	}
}
