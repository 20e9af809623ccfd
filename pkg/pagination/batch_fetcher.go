package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds fan-out configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel fetches.
	// PokeAPI asks clients to stay gentle; 8 keeps a 20-entry page fast.
	MaxConcurrency int
	// Timeout per item fetch
	Timeout time.Duration
}

// DefaultConfig returns safe default configuration for PokeAPI
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 8
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// FetchFunc fetches the output for a single input.
type FetchFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// FetchAll runs fn for every input with bounded concurrency and returns the
// outputs in input order. The first failure cancels the remaining fetches
// and is returned; partial results are discarded.
func FetchAll[In, Out any](ctx context.Context, cfg Config, inputs []In, fn FetchFunc[In, Out]) ([]Out, error) {
	cfg = cfg.withDefaults()
	start := time.Now()

	if len(inputs) == 0 {
		return []Out{}, nil
	}

	results := make([]Out, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for i, in := range inputs {
		g.Go(func() error {
			// Skip queued work once a sibling failed
			if err := gctx.Err(); err != nil {
				return err
			}

			itemCtx, cancel := context.WithTimeout(gctx, cfg.Timeout)
			defer cancel()

			out, err := fn(itemCtx, in)
			if err != nil {
				log.Debug().
					Err(err).
					Int("index", i).
					Msg("Item fetch failed")
				return fmt.Errorf("item %d: %w", i, err)
			}

			// Each goroutine owns its own slot
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn().
			Err(err).
			Int("items", len(inputs)).
			Dur("duration", time.Since(start)).
			Msg("Fan-out aborted")
		return nil, err
	}

	log.Debug().
		Int("items", len(inputs)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Fan-out complete")

	return results, nil
}
