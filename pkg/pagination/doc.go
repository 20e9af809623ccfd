// Package pagination provides bounded-concurrency fan-out for hydrating the
// entries of one upstream list page.
//
// A PokeAPI list page only carries names and detail URLs; every entry needs
// its own detail and species request before it can be displayed. FetchAll
// runs those per-entry fetches on a limited worker pool while keeping the
// results in input order.
//
// Example usage:
//
//	cfg := pagination.DefaultConfig()
//	records, err := pagination.FetchAll(ctx, cfg, entries,
//		func(ctx context.Context, e listEntry) (catalog.Record, error) {
//			return c.fetchRecord(ctx, e)
//		})
//
// The fan-out:
//   - Runs at most MaxConcurrency fetches at once
//   - Bounds every fetch with its own Timeout
//   - Stops at the first failure and cancels the remaining fetches
//   - Returns results in the same order as the inputs
package pagination
