package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/pokeapi-client/pkg/catalog"
)

// topUpResult is what a filtered top-up hands back to the coordinator.
type topUpResult struct {
	matches []catalog.Record
	last    catalog.Page
	pages   int
}

// startTopUpLocked runs a filtered top-up from cursor on its own goroutine.
// query is normalized and fixed for the whole loop.
func (c *Coordinator) startTopUpLocked(cursor int, query string) {
	ctx, generation := c.beginLocked()

	c.logger.Debug().
		Int("cursor", cursor).
		Str("query", query).
		Int("target", c.config.FilterTarget).
		Msg("Starting filtered top-up")

	go func() {
		defer c.inflight.Done()

		start := time.Now()
		res, err := c.topUp(ctx, cursor, query)
		c.completeTopUp(generation, query, res, err, time.Since(start))
	}()
}

// topUp walks upstream pages from cursor until it has collected
// FilterTarget matches for query or upstream runs out. Any failure discards
// what was collected.
func (c *Coordinator) topUp(ctx context.Context, cursor int, query string) (topUpResult, error) {
	var res topUpResult
	limit := c.config.PageSize

	for len(res.matches) < c.config.FilterTarget {
		if err := ctx.Err(); err != nil {
			return topUpResult{}, err
		}

		page, err := c.fetcher.FetchPage(ctx, cursor, limit)
		if err != nil {
			return topUpResult{}, fmt.Errorf("top-up page at offset %d: %w", cursor, err)
		}
		res.pages++
		res.last = page

		matches := catalog.Filter(page.Records, query)
		res.matches = append(res.matches, matches...)

		c.logger.Debug().
			Int("cursor", cursor).
			Int("records", len(page.Records)).
			Int("matches", len(matches)).
			Int("collected", len(res.matches)).
			Msg("Top-up page scanned")

		if page.NextOffset == nil || len(page.Records) < limit {
			break
		}
		if *page.NextOffset <= cursor {
			// A cursor that does not advance would loop forever.
			c.logger.Warn().
				Int("cursor", cursor).
				Int("next_offset", *page.NextOffset).
				Msg("Upstream cursor did not advance, stopping top-up")
			break
		}
		cursor = *page.NextOffset
	}

	return res, nil
}

func (c *Coordinator) completeTopUp(generation uint64, query string, res topUpResult, err error, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.currentLocked(generation, modeTopUp) {
		return
	}
	if err != nil {
		c.failLocked(modeTopUp, err)
		return
	}

	added := c.appendLocked(res.matches)
	c.nextOffset = res.last.NextOffset
	c.totalCount = res.last.TotalCount
	c.isLoading = false
	c.lastFetch = c.config.Now()

	c.logger.Info().
		Str("query", query).
		Int("pages", res.pages).
		Int("matches", len(res.matches)).
		Int("added", added).
		Int("items", len(c.items)).
		Bool("has_next", c.nextOffset != nil).
		Dur("duration", elapsed).
		Msg("Filtered top-up finished")
	coordinatorFetchesTotal.WithLabelValues(modeTopUp, "ok").Inc()
	coordinatorTopUpPages.Observe(float64(res.pages))

	c.publishLocked()
}
