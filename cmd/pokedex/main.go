// Command pokedex browses the PokeAPI creature catalog in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/pokeapi-client/internal/tui"
	"github.com/Sternrassler/pokeapi-client/pkg/client"
	"github.com/Sternrassler/pokeapi-client/pkg/config"
	"github.com/Sternrassler/pokeapi-client/pkg/coordinator"
	"github.com/Sternrassler/pokeapi-client/pkg/logging"
	"github.com/Sternrassler/pokeapi-client/pkg/metrics"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	configPath string
	envFile    string
	initConfig string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pokedex: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, out io.Writer) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("pokedex", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a TOML or YAML config file")
	fs.StringVar(&f.envFile, "env-file", "", "dotenv file to load (default .env when present)")
	fs.StringVar(&f.initConfig, "init-config", "", "write a starter config file to this path and exit")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func run(args []string, out io.Writer) error {
	f, err := parseFlags(args, out)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if f.initConfig != "" {
		if err := config.WriteDefault(f.initConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote starter config to %s\n", f.initConfig)
		return nil
	}

	cfg, err := config.Load(config.Options{File: f.configPath, EnvFile: f.envFile})
	if err != nil {
		return err
	}

	// The terminal belongs to the TUI, so logs go to a file.
	logFile, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logging.Setup(cfg.LoggingConfig(logFile))
	logger := logging.NewLogger("pokedex")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := connectRedis(ctx, cfg, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	pokeapi, err := client.New(cfg.ClientConfig(rdb))
	if err != nil {
		return fmt.Errorf("create PokeAPI client: %w", err)
	}
	defer pokeapi.Close()

	coord := coordinator.New(pokeapi, cfg.CoordinatorConfig())
	defer coord.Close()

	logger.Info().
		Str("base_url", cfg.API.BaseURL).
		Int("page_size", cfg.Browser.PageSize).
		Int("tail_window", cfg.Browser.TailWindow).
		Dur("cooldown", cfg.Browser.Cooldown).
		Bool("cache", rdb != nil).
		Msg("Starting pokedex")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.ListenAndServe(gctx, cfg.Metrics.Addr, logging.NewLogger("metrics"))
		})
	}

	model := tui.New(coord, tui.Options{TailWindow: cfg.Browser.TailWindow})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
	unsubscribe := tui.Forward(coord, program)
	defer unsubscribe()

	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("run TUI: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info().Err(err).Msg("Pokedex stopped")
	return err
}

// connectRedis returns a pinged Redis client, or nil when the cache is
// disabled or unreachable. An unreachable Redis only disables caching.
func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	rdb := cfg.RedisClient()
	if rdb == nil {
		return nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().
			Err(err).
			Str("addr", cfg.Cache.RedisAddr).
			Msg("Redis unreachable, running without cache")
		rdb.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Connected to Redis")
	return rdb
}
