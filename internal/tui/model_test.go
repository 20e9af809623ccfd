package tui

import (
	"testing"
	"time"

	"github.com/Sternrassler/pokeapi-client/internal/testutil"
	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
	"github.com/Sternrassler/pokeapi-client/pkg/coordinator"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBrowser records calls and filters like the coordinator.
type fakeBrowser struct {
	state coordinator.State

	loads      int
	clears     int
	queries    []string
	tailEvents []*catalog.Record
	accept     bool
	cooldown   time.Duration
}

func (b *fakeBrowser) LoadInitial() { b.loads++ }

func (b *fakeBrowser) OnTailReached(item *catalog.Record) bool {
	b.tailEvents = append(b.tailEvents, item)
	return b.accept
}

func (b *fakeBrowser) SetQuery(q string) {
	b.queries = append(b.queries, q)
	b.state.Query = q
	b.state.FilteredItems = catalog.Filter(b.state.Items, q)
}

func (b *fakeBrowser) ClearError() {
	b.clears++
	b.state.ErrorMessage = ""
}

func (b *fakeBrowser) State() coordinator.State { return b.state }

func (b *fakeBrowser) CooldownRemaining() time.Duration { return b.cooldown }

func stateWith(records []catalog.Record, query string) coordinator.State {
	return coordinator.State{
		Items:         records,
		FilteredItems: catalog.Filter(records, query),
		Query:         query,
		NextOffset:    catalog.Offset(len(records)),
		TotalCount:    1302,
	}
}

func newTestModel(t *testing.T, b *fakeBrowser, tailWindow int) Model {
	t.Helper()
	logger := zerolog.Nop()
	m := New(b, Options{TailWindow: tailWindow, Logger: &logger})
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return model
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRecordItem(t *testing.T) {
	tests := []struct {
		name      string
		record    catalog.Record
		wantTitle string
		wantDesc  string
	}{
		{
			name:      "types and blurb",
			record:    catalog.Record{ID: 1, Name: "Bulbasaur", Types: []string{"Grass", "Poison"}, Blurb: "A strange seed."},
			wantTitle: "#001 Bulbasaur",
			wantDesc:  "Grass · Poison — A strange seed.",
		},
		{
			name:      "no blurb",
			record:    catalog.Record{ID: 10, Name: "Caterpie", Types: []string{"Bug"}},
			wantTitle: "#010 Caterpie",
			wantDesc:  "Bug",
		},
		{
			name:      "four digit id",
			record:    catalog.Record{ID: 1025, Name: "Pecharunt", Blurb: "Poison mochi."},
			wantTitle: "#1025 Pecharunt",
			wantDesc:  "Poison mochi.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := recordItem{record: tt.record}
			assert.Equal(t, tt.wantTitle, item.Title())
			assert.Equal(t, tt.wantDesc, item.Description())
			assert.Equal(t, tt.record.Name, item.FilterValue())
		})
	}
}

func TestInitLoads(t *testing.T) {
	b := &fakeBrowser{}
	m := newTestModel(t, b, 1)

	cmd := m.Init()
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	assert.Equal(t, 1, b.loads)
}

func TestStateMsgRendersFilteredItems(t *testing.T) {
	b := &fakeBrowser{}
	m := newTestModel(t, b, 1)

	records := testutil.Records(1, 5)
	m = update(t, m, StateMsg{State: stateWith(records, "")})

	assert.Len(t, m.list.Items(), 5)
	view := m.View()
	assert.Contains(t, view, "#001 Mon001")
	assert.Contains(t, view, "5 of 1302")
}

func TestTailEventForLastVisibleRow(t *testing.T) {
	b := &fakeBrowser{accept: true}
	m := newTestModel(t, b, 1)

	records := testutil.Records(1, 3)
	m = update(t, m, StateMsg{State: stateWith(records, "")})

	require.Len(t, b.tailEvents, 1)
	require.NotNil(t, b.tailEvents[0])
	assert.Equal(t, 3, b.tailEvents[0].ID)
}

func TestTailEventAfterScrolling(t *testing.T) {
	b := &fakeBrowser{accept: true}
	m := newTestModel(t, b, 5)

	records := testutil.Records(1, 60)
	m = update(t, m, StateMsg{State: stateWith(records, "")})
	assert.Empty(t, b.tailEvents, "tail is off screen")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnd})

	require.NotEmpty(t, b.tailEvents)
	got := b.tailEvents[len(b.tailEvents)-1]
	require.NotNil(t, got)
	assert.Equal(t, 60, got.ID)
}

func TestNoTailEventWhileLoading(t *testing.T) {
	b := &fakeBrowser{accept: true}
	m := newTestModel(t, b, 1)

	s := stateWith(testutil.Records(1, 3), "")
	s.IsLoading = true
	m = update(t, m, StateMsg{State: s})

	assert.Empty(t, b.tailEvents)
	assert.Contains(t, m.View(), "Loading")
}

func TestEmptySearchAsksOnce(t *testing.T) {
	b := &fakeBrowser{accept: true}
	m := newTestModel(t, b, 1)

	s := stateWith(testutil.Records(1, 3), "zzz")
	m = update(t, m, StateMsg{State: s})
	m = update(t, m, StateMsg{State: s})

	require.Len(t, b.tailEvents, 1)
	assert.Nil(t, b.tailEvents[0])
	assert.Contains(t, m.View(), `No Pokémon match "zzz".`)
}

func TestSearchTyping(t *testing.T) {
	records := append([]catalog.Record{testutil.Record(1, "Bulbasaur", "Grass", "Poison")}, testutil.Records(2, 4)...)
	b := &fakeBrowser{state: stateWith(records, "")}
	m := newTestModel(t, b, 1)
	m = update(t, m, StateMsg{State: b.state})

	m = update(t, m, runes("/"))
	require.True(t, m.search.Focused())

	m = update(t, m, runes("b"))
	m = update(t, m, runes("u"))

	assert.Equal(t, []string{"b", "bu"}, b.queries)
	assert.Len(t, m.list.Items(), 1)

	// q is text while searching, not quit.
	m = update(t, m, runes("q"))
	assert.Equal(t, "buq", b.queries[len(b.queries)-1])

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.search.Focused())
	assert.Contains(t, m.View(), "buq")

	// esc outside the search bar clears the query.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "", b.queries[len(b.queries)-1])
	assert.Len(t, m.list.Items(), 5)
}

func TestEscDismissesError(t *testing.T) {
	b := &fakeBrowser{}
	m := newTestModel(t, b, 1)

	s := stateWith(testutil.Records(1, 3), "")
	s.ErrorMessage = "You appear to be offline. Please check your connection."
	b.state = s
	m = update(t, m, StateMsg{State: s})
	assert.Contains(t, m.View(), "You appear to be offline")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, 1, b.clears)
	assert.NotContains(t, m.View(), "You appear to be offline")
}

func TestReloadAndQuit(t *testing.T) {
	b := &fakeBrowser{}
	m := newTestModel(t, b, 1)

	m = update(t, m, runes("r"))
	assert.Equal(t, 1, b.loads)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestFooterEndOfCatalog(t *testing.T) {
	b := &fakeBrowser{}
	m := newTestModel(t, b, 1)

	s := stateWith(testutil.Records(1, 3), "")
	s.NextOffset = nil
	m = update(t, m, StateMsg{State: s})

	assert.Contains(t, m.View(), "End of catalog")
}

func TestRefusedTailEventRetriedAfterCooldown(t *testing.T) {
	b := &fakeBrowser{cooldown: time.Second}
	m := newTestModel(t, b, 1)

	s := stateWith(testutil.Records(1, 3), "")
	next, cmd := m.Update(StateMsg{State: s})
	m = next.(Model)
	require.NotNil(t, cmd)
	require.Len(t, b.tailEvents, 1)
	assert.True(t, m.tailRetryPending)

	// A second refusal does not schedule another check.
	m = update(t, m, StateMsg{State: s})
	assert.Len(t, b.tailEvents, 2)
	assert.True(t, m.tailRetryPending)

	b.accept = true
	b.cooldown = 0
	m = update(t, m, tailRetryMsg{})

	require.Len(t, b.tailEvents, 3)
	assert.Equal(t, 3, b.tailEvents[2].ID)
	assert.False(t, m.tailRetryPending)
}

func TestRefusedTailEventWithoutCooldownNotRetried(t *testing.T) {
	b := &fakeBrowser{}
	m := newTestModel(t, b, 1)

	m = update(t, m, StateMsg{State: stateWith(testutil.Records(1, 3), "")})

	require.Len(t, b.tailEvents, 1)
	assert.False(t, m.tailRetryPending)
}

func TestSearchDuringCooldownTopsUpWhenItEnds(t *testing.T) {
	clock := testutil.NewClock()
	f := testutil.NewScriptedFetcher(
		testutil.Page(testutil.Records(1, 20), catalog.Offset(20), 21),
		testutil.Page([]catalog.Record{testutil.Record(21, "Ivysaur", "Grass", "Poison")}, nil, 21),
	)
	logger := zerolog.Nop()
	c := coordinator.New(f, coordinator.Config{
		PageSize:   20,
		TailWindow: 5,
		Cooldown:   time.Second,
		Now:        clock.Now,
		Logger:     &logger,
	})
	t.Cleanup(c.Close)

	c.LoadInitial()
	require.Eventually(t, func() bool {
		s := c.State()
		return !s.IsLoading && len(s.Items) == 20
	}, time.Second, 5*time.Millisecond)

	m := New(c, Options{TailWindow: 5, Logger: &logger})
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = update(t, m, StateMsg{State: c.State()})

	m = update(t, m, runes("/"))
	m = update(t, m, runes("ivy"))
	m = update(t, m, StateMsg{State: c.State()})

	assert.Equal(t, 1, f.CallCount(), "still cooling down")
	require.True(t, m.tailRetryPending)

	clock.Advance(2 * time.Second)
	m = update(t, m, tailRetryMsg{})

	require.Eventually(t, func() bool { return f.CallCount() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		s := c.State()
		return !s.IsLoading && len(s.FilteredItems) == 1
	}, time.Second, 5*time.Millisecond)

	m = update(t, m, StateMsg{State: c.State()})
	assert.Contains(t, m.View(), "Ivysaur")
}
