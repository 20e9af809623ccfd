package coordinator

import (
	"testing"
	"time"

	"github.com/Sternrassler/pokeapi-client/internal/testutil"
	"github.com/Sternrassler/pokeapi-client/pkg/client"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPokeAPIClient(t *testing.T, baseURL string, rdb *redis.Client) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig("pokeapi-client-test/1.0")
	cfg.BaseURL = baseURL
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.RequestsPerSecond = 0
	cfg.Redis = rdb

	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBrowse_PagesThroughMockCatalog(t *testing.T) {
	mock := testutil.NewMockPokeAPI(testutil.KantoStarters())
	defer mock.Close()

	c := loaded(t, newPokeAPIClient(t, mock.BaseURL(), nil), func(cfg *Config) { cfg.PageSize = 4 })

	state := c.State()
	assert.Equal(t, []string{"Bulbasaur", "Ivysaur", "Venusaur", "Charmander"}, names(state.Items))
	assert.Equal(t, 11, state.TotalCount)

	require.True(t, c.OnTailReached(last(state.Items)))
	waitIdle(t, c)
	require.True(t, c.OnTailReached(last(c.State().Items)))
	waitIdle(t, c)

	state = c.State()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 122}, ids(state.Items))
	assert.Equal(t, "Mr-Mime", state.Items[10].Name)
	assert.Equal(t, []string{"Psychic", "Fairy"}, state.Items[10].Types)
	assert.Nil(t, state.NextOffset)
	assert.Empty(t, state.ErrorMessage)

	assert.False(t, c.OnTailReached(last(state.Items)))
}

func TestBrowse_SearchTopsUpFromUpstream(t *testing.T) {
	mock := testutil.NewMockPokeAPI(testutil.KantoStarters())
	defer mock.Close()

	c := loaded(t, newPokeAPIClient(t, mock.BaseURL(), nil), func(cfg *Config) { cfg.PageSize = 4 })

	c.SetQuery("Psychic")
	require.Empty(t, c.State().FilteredItems)

	require.True(t, c.OnTailReached(nil))
	waitIdle(t, c)

	state := c.State()
	assert.Equal(t, []string{"Mr-Mime"}, names(state.FilteredItems))
	assert.Equal(t, []int{1, 2, 3, 4, 122}, ids(state.Items))
	assert.Nil(t, state.NextOffset)

	c.SetQuery("")
	assert.Len(t, c.State().FilteredItems, 5)
}

func TestBrowse_UpstreamFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		mock := testutil.NewMockPokeAPI(testutil.KantoStarters())
		defer mock.Close()
		mock.SetResponse("/api/v2/pokemon", testutil.MockResponse{StatusCode: 500})

		c := loaded(t, newPokeAPIClient(t, mock.BaseURL(), nil))

		state := c.State()
		assert.Equal(t, "The server responded with an unexpected status code: 500.", state.ErrorMessage)
		assert.Empty(t, state.Items)
		require.NotNil(t, state.NextOffset)
		assert.Equal(t, 0, *state.NextOffset)
	})

	t.Run("offline", func(t *testing.T) {
		mock := testutil.NewMockPokeAPI(nil)
		baseURL := mock.BaseURL()
		mock.Close()

		c := loaded(t, newPokeAPIClient(t, baseURL, nil))

		assert.Equal(t, "You appear to be offline. Please check your connection.", c.State().ErrorMessage)
	})

	t.Run("missing species", func(t *testing.T) {
		mock := testutil.NewMockPokeAPI(testutil.KantoStarters())
		defer mock.Close()
		mock.SetResponse("/api/v2/pokemon-species/2", testutil.MockResponse{StatusCode: 404})

		c := loaded(t, newPokeAPIClient(t, mock.BaseURL(), nil), func(cfg *Config) { cfg.PageSize = 4 })

		state := c.State()
		assert.Equal(t, "The server responded with an unexpected status code: 404.", state.ErrorMessage)
		assert.Empty(t, state.Items, "one failed entry fails the page")
	})
}

