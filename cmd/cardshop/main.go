package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"

	"github.com/guarzo/cardshop/internal/batch"
	"github.com/guarzo/cardshop/internal/cache"
	"github.com/guarzo/cardshop/internal/config"
	"github.com/guarzo/cardshop/internal/inventory"
	"github.com/guarzo/cardshop/internal/logger"
	"github.com/guarzo/cardshop/internal/marketprice"
	"github.com/guarzo/cardshop/internal/settings"
)

const usage = `usage: cardshop [-config file] <command> [flags]

commands:
  price        print the pricing breakdown for one card
  import       load inventory items from a JSON file
  reprice      reprice active inventory once
  schedule     reprice on the configured cron schedule until interrupted
  label        lock prices and write a CSV label sheet
  rules        print the active pricing settings
  rules-reset  write the default pricing settings to the settings store
  cache-clear  drop cached market quotes, all or for the given card ids
`

func main() {
	args := os.Args[1:]
	configPath := ""
	if len(args) >= 2 && args[0] == "-config" {
		configPath, args = args[1], args[2:]
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, lg)
	if err != nil {
		lg.Fatalw("Failed to initialize", "error", err)
	}
	defer a.Close()

	if err := a.run(ctx, args[0], args[1:], os.Stdout); err != nil {
		lg.Errorw("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// app holds the collaborators every command shares.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	settings  settings.Store // nil when the backend is "none"
	inventory inventory.Store
	closers   []io.Closer
}

func newApp(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: lg}
	lg.Infow("Starting cardshop", "config", cfg.String())

	switch cfg.Settings.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client)
		a.settings = settings.NewRedisStore(client)
	case "file":
		fs, err := settings.NewFileStore(cfg.Settings.File)
		if err != nil {
			return nil, err
		}
		a.settings = fs
	}

	switch cfg.Inventory.Driver {
	case "memory":
		lg.Warnw("Using in-memory inventory, records are lost on exit")
		a.inventory = inventory.NewMemoryStore()
	default:
		store, err := inventory.Open(cfg.Inventory.Driver, cfg.Inventory.DSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, store)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			a.Close()
			return nil, errors.Wrapf(err, "connect to %s", cfg.Inventory.Driver)
		}
		if err := store.Migrate(pingCtx); err != nil {
			a.Close()
			return nil, err
		}
		a.inventory = store
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warnw("Close failed", "error", err)
		}
	}
	a.closers = nil
}

// provider chains the pricing API with the page scraper when one is set up.
func (a *app) provider() (marketprice.Provider, error) {
	mp := a.cfg.MarketPrice

	var c *cache.Cache
	if mp.CachePath != "" {
		var err error
		if c, err = cache.New(mp.CachePath); err != nil {
			return nil, errors.Wrap(err, "open market price cache")
		}
	}

	api := marketprice.NewTCGClient(marketprice.TCGConfig{
		APIKey:         mp.APIKey,
		BaseURL:        mp.BaseURL,
		RatePerMinute:  mp.RatePerMinute,
		RequestTimeout: mp.RequestTimeout,
		CacheTTL:       mp.CacheTTL,
	}, c, a.log)
	chain := marketprice.Chain{marketprice.Sanitized{Provider: api}}
	if mp.ScrapeURL != "" {
		scraper := marketprice.NewPageScraper(mp.ScrapeURL, mp.ScrapeSelector, mp.RatePerMinute)
		chain = append(chain, marketprice.Sanitized{Provider: scraper})
	}
	return chain, nil
}

func (a *app) batchConfig() batch.Config {
	rc := a.cfg.Reprice
	return batch.Config{
		Workers:   rc.Workers,
		RateLimit: rate.Limit(rc.RatePerSecond),
		Timeout:   a.cfg.MarketPrice.RequestTimeout,
		Retries:   2,
		Printing:  rc.Printing,
	}
}
