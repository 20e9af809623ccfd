package coordinator

import (
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
)

// startPageLocked fetches one page at offset on its own goroutine.
func (c *Coordinator) startPageLocked(offset int) {
	ctx, generation := c.beginLocked()
	limit := c.config.PageSize

	c.logger.Debug().
		Int("offset", offset).
		Int("limit", limit).
		Msg("Fetching page")

	go func() {
		defer c.inflight.Done()

		start := time.Now()
		page, err := c.fetcher.FetchPage(ctx, offset, limit)
		c.completePage(generation, offset, page, err, time.Since(start))
	}()
}

func (c *Coordinator) completePage(generation uint64, offset int, page catalog.Page, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(generation, modePage) {
		return
	}
	if err != nil {
		c.failLocked(modePage, err)
		return
	}

	added := c.appendLocked(page.Records)
	c.nextOffset = page.NextOffset
	c.totalCount = page.TotalCount
	c.isLoading = false
	c.lastFetch = c.config.Now()

	c.logger.Info().
		Int("offset", offset).
		Int("added", added).
		Int("items", len(c.items)).
		Int("total_count", c.totalCount).
		Bool("has_next", c.nextOffset != nil).
		Dur("duration", elapsed).
		Msg("Page appended")
	coordinatorFetchesTotal.WithLabelValues(modePage, "ok").Inc()

	c.publishLocked()
}
