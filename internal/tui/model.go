package tui

import (
	"fmt"
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
	"github.com/Sternrassler/pokeapi-client/pkg/coordinator"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Browser is the coordinator surface the view drives.
type Browser interface {
	LoadInitial()
	OnTailReached(item *catalog.Record) bool
	SetQuery(query string)
	ClearError()
	State() coordinator.State
	CooldownRemaining() time.Duration
}

// tailRetryMsg re-runs the tail check once a cool-down has passed.
type tailRetryMsg struct{}

// Options configures the model.
type Options struct {
	// TailWindow is how close to the end of the list the last visible row
	// must be before more records are requested. Match the coordinator's.
	TailWindow int

	Logger *zerolog.Logger
}

// Model is the bubbletea model of the browser.
type Model struct {
	browser    Browser
	tailWindow int
	logger     zerolog.Logger
	keys       keyMap

	list    list.Model
	search  textinput.Model
	spinner spinner.Model

	state coordinator.State

	// emptyQueryAsked is the query for which an empty result list already
	// asked for more records.
	emptyQueryAsked string
	emptyAsked      bool

	// tailRetryPending is set while a tailRetryMsg is scheduled.
	tailRetryPending bool

	width  int
	height int
}

// New creates the model. Nothing is fetched until Init runs.
func New(browser Browser, opts Options) Model {
	if opts.TailWindow < 1 {
		opts.TailWindow = 1
	}
	logger := log.With().Str("component", "tui").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	ti := textinput.New()
	ti.Placeholder = "name or type…"
	ti.Prompt = "/ "
	ti.CharLimit = 64

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return Model{
		browser:    browser,
		tailWindow: opts.TailWindow,
		logger:     logger,
		keys:       defaultKeyMap(),
		list:       l,
		search:     ti,
		spinner:    s,
		state:      browser.State(),
	}
}

// Init starts the initial load.
func (m Model) Init() tea.Cmd {
	browser := m.browser
	return func() tea.Msg {
		browser.LoadInitial()
		return nil
	}
}

// Update handles messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = max(msg.Width-8, 10)
		m.resize()
		cmd := m.checkTail()
		return m, cmd

	case StateMsg:
		return m.applyState(msg.State)

	case tailRetryMsg:
		m.tailRetryPending = false
		cmd := m.checkTail()
		return m, cmd

	case spinner.TickMsg:
		if !m.state.IsLoading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Force) {
			return m, tea.Quit
		}
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) applyState(s coordinator.State) (tea.Model, tea.Cmd) {
	wasLoading := m.state.IsLoading
	hadError := m.state.ErrorMessage != ""
	m.state = s

	cmds := []tea.Cmd{m.list.SetItems(toItems(s.FilteredItems))}
	if hadError != (s.ErrorMessage != "") {
		m.resize()
	}
	if s.IsLoading && !wasLoading {
		cmds = append(cmds, m.spinner.Tick)
	}
	if s.ErrorMessage != "" && !hadError {
		m.logger.Warn().Str("error", s.ErrorMessage).Msg("Showing error")
	}

	cmds = append(cmds, m.checkTail())
	return m, tea.Batch(cmds...)
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Accept), key.Matches(msg, m.keys.Dismiss):
		m.search.Blur()
		m.resize()
		return m, nil
	}

	before := m.search.Value()
	var cmd, queryCmd tea.Cmd
	m.search, cmd = m.search.Update(msg)

	if value := m.search.Value(); value != before {
		queryCmd = m.setQuery(value)
	}
	return m, tea.Batch(cmd, queryCmd)
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Search):
		cmd := m.search.Focus()
		m.resize()
		return m, cmd

	case key.Matches(msg, m.keys.Dismiss):
		if m.state.ErrorMessage != "" {
			m.browser.ClearError()
			m.state.ErrorMessage = ""
			m.resize()
			return m, nil
		}
		var cmd tea.Cmd
		if m.search.Value() != "" {
			m.search.SetValue("")
			cmd = m.setQuery("")
			m.resize()
		}
		return m, cmd

	case key.Matches(msg, m.keys.Reload):
		m.logger.Info().Msg("Reload requested")
		m.browser.LoadInitial()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	tailCmd := m.checkTail()
	return m, tea.Batch(cmd, tailCmd)
}

// setQuery pushes the query to the browser and re-renders from its state
// so the list filters immediately, before the notification arrives.
func (m *Model) setQuery(query string) tea.Cmd {
	m.browser.SetQuery(query)
	m.state = m.browser.State()
	m.list.ResetSelected()
	m.list.SetItems(toItems(m.state.FilteredItems))
	return m.checkTail()
}

// checkTail asks for more records when the last visible row is within the
// tail window, or once per query when a search shows nothing. A request
// refused during the browser's cool-down is retried when it ends.
func (m *Model) checkTail() tea.Cmd {
	items := m.state.FilteredItems
	if m.state.IsLoading || m.width == 0 {
		return nil
	}

	if len(items) == 0 {
		if !m.state.Searching() {
			return nil
		}
		if m.emptyAsked && m.emptyQueryAsked == m.state.Query {
			return nil
		}
		if !m.browser.OnTailReached(nil) {
			return m.retryTailLater()
		}
		m.emptyAsked = true
		m.emptyQueryAsked = m.state.Query
		m.logger.Debug().Str("query", m.state.Query).Msg("Empty results, asking for more")
		return nil
	}

	_, end := m.list.Paginator.GetSliceBounds(len(items))
	lastVisible := end - 1
	if lastVisible < 0 || lastVisible < len(items)-m.tailWindow {
		return nil
	}

	item := items[lastVisible]
	if !m.browser.OnTailReached(&item) {
		return m.retryTailLater()
	}
	m.logger.Debug().Int("item_id", item.ID).Msg("Tail reached, fetching more")
	return nil
}

// retryTailLater schedules one tail check for when the cool-down ends.
func (m *Model) retryTailLater() tea.Cmd {
	if m.tailRetryPending {
		return nil
	}
	wait := m.browser.CooldownRemaining()
	if wait <= 0 {
		return nil
	}
	m.tailRetryPending = true
	m.logger.Debug().Dur("wait", wait).Msg("Tail event in cool-down, checking again later")
	return tea.Tick(wait, func(time.Time) tea.Msg { return tailRetryMsg{} })
}

// resize fits the list between the header, search bar, error box and footer.
func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	chrome := lipgloss.Height(m.headerView()) + lipgloss.Height(m.footerView())
	if bar := m.searchView(); bar != "" {
		chrome += lipgloss.Height(bar)
	}
	if box := m.errorView(); box != "" {
		chrome += lipgloss.Height(box)
	}
	m.list.SetSize(m.width, max(m.height-chrome, 3))
}

// View renders the browser.
func (m Model) View() string {
	sections := []string{m.headerView()}
	if bar := m.searchView(); bar != "" {
		sections = append(sections, bar)
	}
	if box := m.errorView(); box != "" {
		sections = append(sections, box)
	}

	if len(m.state.FilteredItems) == 0 && !m.state.IsLoading && m.state.Searching() {
		sections = append(sections, emptyStyle.Render(fmt.Sprintf("No Pokémon match %q.", m.state.Query)))
	} else {
		sections = append(sections, m.list.View())
	}

	sections = append(sections, m.footerView())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) headerView() string {
	count := fmt.Sprintf("%d loaded", len(m.state.Items))
	if m.state.TotalCount > 0 {
		count = fmt.Sprintf("%d of %d", len(m.state.Items), m.state.TotalCount)
	}
	if m.state.Searching() {
		count = fmt.Sprintf("%d matches · %s", len(m.state.FilteredItems), count)
	}
	return titleStyle.Render("Pokédex") + "  " + countStyle.Render(count)
}

func (m Model) searchView() string {
	if !m.search.Focused() && m.search.Value() == "" {
		return ""
	}
	return searchStyle.Render(m.search.View())
}

func (m Model) errorView() string {
	if m.state.ErrorMessage == "" {
		return ""
	}
	width := max(m.width-8, 20)
	return errorBoxStyle.Width(width).Render(m.state.ErrorMessage + "\n" + countStyle.Render("esc to dismiss"))
}

func (m Model) footerView() string {
	switch {
	case m.state.IsLoading:
		return footerStyle.Render(m.spinner.View() + " Loading…")
	case !m.state.HasMore() && len(m.state.Items) > 0:
		return footerStyle.Render("End of catalog · " + m.keys.hint(m.search.Focused()))
	default:
		return footerStyle.Render(m.keys.hint(m.search.Focused()))
	}
}
