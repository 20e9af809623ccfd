// Package coordinator owns the browsable catalog state: the merged record
// list, the search query, the upstream cursor, the loading flag and the
// last error. It decides when another page is fetched, either one page at a
// time while the query is blank, or by topping up filtered matches while a
// search is active.
//
// Entrypoints never block on the network. Fetches run on their own
// goroutine and state changes are delivered to subscribers in order on a
// dedicated dispatcher goroutine.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for coordinator decisions.
var (
	coordinatorTailEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_coordinator_tail_events_total",
		Help: "Tail-reached events by gate decision",
	}, []string{"decision"})

	coordinatorFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokeapi_coordinator_fetches_total",
		Help: "Completed coordinator fetches by mode and outcome",
	}, []string{"mode", "outcome"})

	coordinatorTopUpPages = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokeapi_coordinator_topup_pages",
		Help:    "Upstream pages consumed by one filtered top-up",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
	})
)

// Gate decisions, used as metric labels and in debug logs.
const (
	decisionStarted   = "started"
	decisionClosed    = "closed"
	decisionLoading   = "loading"
	decisionExhausted = "exhausted"
	decisionError     = "error"
	decisionCooldown  = "cooldown"
	decisionNotTail   = "not_tail"
)

// Fetch modes.
const (
	modePage  = "page"
	modeTopUp = "topup"
)

// Config holds the coordinator configuration.
type Config struct {
	// PageSize is the limit passed to every FetchPage call.
	PageSize int

	// TailWindow is how many trailing records count as "the end of the list".
	// 1 means only the last record triggers a fetch.
	TailWindow int

	// FilterTarget is how many new matches a filtered top-up collects before
	// it stops. Defaults to PageSize.
	FilterTarget int

	// Cooldown suppresses tail events for this long after a fetch completes.
	Cooldown time.Duration

	// Now is the time source for Cooldown. Defaults to time.Now.
	Now func() time.Time

	// Logger defaults to the global logger tagged component=coordinator.
	Logger *zerolog.Logger
}

// DefaultConfig returns the library defaults: pages of 20, strict last-record
// tail detection, and no cooldown.
func DefaultConfig() Config {
	return Config{
		PageSize:   20,
		TailWindow: 1,
	}
}

func (c Config) withDefaults() Config {
	if c.PageSize < 1 {
		c.PageSize = DefaultConfig().PageSize
	}
	if c.TailWindow < 1 {
		c.TailWindow = 1
	}
	if c.FilterTarget < 1 {
		c.FilterTarget = c.PageSize
	}
	if c.Cooldown < 0 {
		c.Cooldown = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	fetcher  catalog.Fetcher
	config   Config
	logger   zerolog.Logger
	notifier *notifier

	mu           sync.Mutex
	items        []catalog.Record
	ids          map[int]struct{}
	query        string
	nextOffset   *int
	totalCount   int
	isLoading    bool
	errorMessage string
	lastFetch    time.Time

	// generation identifies the current session. Completions carrying an
	// older generation are dropped.
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	inflight   sync.WaitGroup
}

// New creates a coordinator in its initial state: no items, cursor at 0.
// Nothing is fetched until LoadInitial.
func New(fetcher catalog.Fetcher, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()

	logger := log.With().Str("component", "coordinator").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		fetcher:    fetcher,
		config:     cfg,
		logger:     logger,
		notifier:   newNotifier(logger),
		ids:        make(map[int]struct{}),
		nextOffset: catalog.Offset(0),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots arrive in change order on a single goroutine; fn may call back
// into the coordinator. The returned func unsubscribes.
func (c *Coordinator) Subscribe(fn func(State)) func() {
	return c.notifier.subscribe(fn)
}

// State returns a snapshot of the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadInitial resets the list and fetches the first page. Any fetch still in
// flight is cancelled and its result discarded. The query is kept.
func (c *Coordinator) LoadInitial() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.cancel()
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.generation++

	c.items = nil
	c.ids = make(map[int]struct{})
	c.nextOffset = catalog.Offset(0)
	c.totalCount = 0
	c.errorMessage = ""
	c.lastFetch = time.Time{}

	c.logger.Info().Uint64("generation", c.generation).Msg("Loading initial page")
	c.startPageLocked(0)
}

// SetQuery replaces the search text. It never fetches by itself.
func (c *Coordinator) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.query == query {
		return
	}
	c.query = query
	c.publishLocked()
}

// ClearError dismisses the current error. Fetching resumes on the next tail event.
func (c *Coordinator) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.errorMessage == "" {
		return
	}
	c.errorMessage = ""
	c.publishLocked()
}

// OnTailReached is called when item becomes visible near the end of the list
// the user is looking at. It reports whether a fetch was started. A nil item
// skips the tail-position check.
func (c *Coordinator) OnTailReached(item *catalog.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	decision, mode := c.gateLocked(item)
	coordinatorTailEventsTotal.WithLabelValues(decision).Inc()

	if decision != decisionStarted {
		ev := c.logger.Debug().Str("decision", decision)
		if item != nil {
			ev = ev.Int("item_id", item.ID)
		}
		ev.Msg("Tail event ignored")
		return false
	}

	offset := *c.nextOffset
	if mode == modeTopUp {
		c.startTopUpLocked(offset, catalog.NormalizeQuery(c.query))
	} else {
		c.startPageLocked(offset)
	}
	return true
}

// gateLocked decides whether a tail event starts a fetch and which kind.
func (c *Coordinator) gateLocked(item *catalog.Record) (decision, mode string) {
	switch {
	case c.closed:
		return decisionClosed, ""
	case c.isLoading:
		return decisionLoading, ""
	case c.nextOffset == nil:
		return decisionExhausted, ""
	case c.coolingDownLocked():
		return decisionCooldown, ""
	}

	if catalog.NormalizeQuery(c.query) != "" {
		if item != nil && !inTail(catalog.Filter(c.items, c.query), item.ID, c.config.TailWindow) {
			return decisionNotTail, ""
		}
		return decisionStarted, modeTopUp
	}

	switch {
	case c.errorMessage != "":
		return decisionError, ""
	case c.totalCount > 0 && len(c.items) >= c.totalCount:
		return decisionExhausted, ""
	case item != nil && !inTail(c.items, item.ID, c.config.TailWindow):
		return decisionNotTail, ""
	}
	return decisionStarted, modePage
}

func (c *Coordinator) coolingDownLocked() bool {
	return c.cooldownRemainingLocked() > 0
}

// CooldownRemaining reports how much longer tail events are suppressed after
// the last completed fetch. Zero when no cool-down is running.
func (c *Coordinator) CooldownRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooldownRemainingLocked()
}

func (c *Coordinator) cooldownRemainingLocked() time.Duration {
	if c.config.Cooldown <= 0 || c.lastFetch.IsZero() {
		return 0
	}
	return max(c.config.Cooldown-c.config.Now().Sub(c.lastFetch), 0)
}

// inTail reports whether id is among the last window records.
func inTail(records []catalog.Record, id, window int) bool {
	start := len(records) - window
	if start < 0 {
		start = 0
	}
	for _, r := range records[start:] {
		if r.ID == id {
			return true
		}
	}
	return false
}

// beginLocked marks the coordinator loading, notifies, and returns the
// session the fetch belongs to.
func (c *Coordinator) beginLocked() (context.Context, uint64) {
	c.isLoading = true
	c.publishLocked()
	c.inflight.Add(1)
	return c.ctx, c.generation
}

// currentLocked reports whether a completion for generation may still
// mutate state. It logs and counts dropped completions.
func (c *Coordinator) currentLocked(generation uint64, mode string) bool {
	if c.closed || generation != c.generation {
		c.logger.Warn().
			Str("mode", mode).
			Uint64("generation", generation).
			Uint64("current_generation", c.generation).
			Bool("closed", c.closed).
			Msg("Dropping late fetch completion")
		coordinatorFetchesTotal.WithLabelValues(mode, "dropped").Inc()
		return false
	}
	return true
}

// failLocked records a fetch failure. Items and cursor stay as they were.
func (c *Coordinator) failLocked(mode string, err error) {
	c.isLoading = false
	c.lastFetch = c.config.Now()
	c.errorMessage = catalog.Describe(err)

	c.logger.Error().
		Err(err).
		Str("mode", mode).
		Str("kind", string(catalog.KindOf(err))).
		Msg("Fetch failed")
	coordinatorFetchesTotal.WithLabelValues(mode, "error").Inc()

	c.publishLocked()
}

// appendLocked appends records whose IDs are not yet present and returns
// how many were added.
func (c *Coordinator) appendLocked(records []catalog.Record) int {
	added := 0
	for _, r := range records {
		if _, ok := c.ids[r.ID]; ok {
			continue
		}
		c.ids[r.ID] = struct{}{}
		c.items = append(c.items, r)
		added++
	}
	return added
}

// Close cancels in-flight fetches, waits for them to return, and stops
// notifications. State stays readable. Close is idempotent.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.mu.Unlock()

	c.notifier.close()
	c.inflight.Wait()

	c.logger.Debug().Msg("Coordinator closed")
}
