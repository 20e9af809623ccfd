package coordinator

import (
	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
)

// State is an immutable snapshot of the coordinator's observable state.
type State struct {
	// Items is the merged catalog in append order.
	Items []catalog.Record

	// FilteredItems is Items restricted by Query; Items itself when the query is blank.
	FilteredItems []catalog.Record

	// Query is the search text as typed.
	Query string

	IsLoading bool

	// ErrorMessage is the user-visible description of the last failure, "" if none.
	ErrorMessage string

	// NextOffset is the next upstream offset to request; nil once upstream is exhausted.
	NextOffset *int

	// TotalCount is upstream's declared catalog size, 0 before the first page.
	TotalCount int
}

// HasMore reports whether upstream may still have records to fetch.
func (s State) HasMore() bool {
	return s.NextOffset != nil
}

// Searching reports whether a non-blank query is active.
func (s State) Searching() bool {
	return catalog.NormalizeQuery(s.Query) != ""
}

// snapshotLocked copies the mutable state. Callers hold c.mu.
func (c *Coordinator) snapshotLocked() State {
	items := make([]catalog.Record, len(c.items))
	copy(items, c.items)

	var next *int
	if c.nextOffset != nil {
		next = catalog.Offset(*c.nextOffset)
	}

	return State{
		Items:         items,
		FilteredItems: catalog.Filter(items, c.query),
		Query:         c.query,
		IsLoading:     c.isLoading,
		ErrorMessage:  c.errorMessage,
		NextOffset:    next,
		TotalCount:    c.totalCount,
	}
}

// publishLocked queues a snapshot for subscribers. Callers hold c.mu, which
// keeps notification order equal to transition order.
func (c *Coordinator) publishLocked() {
	c.notifier.publish(c.snapshotLocked())
}
