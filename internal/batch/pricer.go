package batch

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/guarzo/cardshop/internal/inventory"
	"github.com/guarzo/cardshop/internal/logger"
	"github.com/guarzo/cardshop/internal/marketprice"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
)

// Config holds configuration for the batch pricer
type Config struct {
	Workers   int           // Number of concurrent workers
	RateLimit rate.Limit    // Market price lookups per second
	Timeout   time.Duration // Timeout per lookup
	Retries   int           // Extra attempts on transient lookup errors
	Backoff   time.Duration // Base delay between retries, doubled each attempt
	Printing  string        // Used when an item has no printing recorded

	// OnProgress, if set, is called after each item with the number done.
	OnProgress func(done, total int)
}

// Outcome says what happened to a single item.
type Outcome string

const (
	OutcomePriced  Outcome = "priced"
	OutcomeLocked  Outcome = "locked" // market and cost refreshed, sell price kept
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result is the per-item result of a run
type Result struct {
	SKU       string
	Outcome   Outcome
	Breakdown pricing.Breakdown
	SellPrice float64 // price on the record after the run
	Error     error
}

// Metrics tracks a single run
type Metrics struct {
	Total        int
	Priced       int
	Locked       int
	Skipped      int
	Failed       int
	Lookups      int
	TotalLatency time.Duration
	StartTime    time.Time
	EndTime      time.Time
}

// Pricer reprices inventory items concurrently against one engine snapshot.
type Pricer struct {
	engine   *pricing.Engine
	store    inventory.Store
	provider marketprice.Provider // may be nil
	limiter  *rate.Limiter
	workers  int
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	printing string
	progress func(done, total int)
	log      *logger.Logger

	mu      sync.Mutex
	metrics Metrics
}

func NewPricer(engine *pricing.Engine, store inventory.Store, provider marketprice.Provider, cfg Config, log *logger.Logger) *Pricer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > 10 {
			workers = 10
		}
	}

	limit := cfg.RateLimit
	if limit == 0 {
		limit = rate.Limit(5)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	backoff := cfg.Backoff
	if backoff == 0 {
		backoff = time.Second
	}

	printing := cfg.Printing
	if printing == "" {
		printing = "normal"
	}

	return &Pricer{
		engine:   engine,
		store:    store,
		provider: provider,
		limiter:  rate.NewLimiter(limit, workers),
		workers:  workers,
		timeout:  timeout,
		retries:  cfg.Retries,
		backoff:  backoff,
		printing: printing,
		progress: cfg.OnProgress,
		log:      logger.OrNop(log),
	}
}

// Run prices every item and returns results in input order. Items that fail
// do not stop the run.
func (p *Pricer) Run(ctx context.Context, items []*model.InventoryItem) []Result {
	p.mu.Lock()
	p.metrics = Metrics{Total: len(items), StartTime: time.Now()}
	p.mu.Unlock()

	results := make([]Result, len(items))
	if len(items) == 0 {
		p.finish()
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers && w < len(items); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.priceItem(ctx, items[i])
				p.record(results[i])
			}
		}()
	}

	for i := range items {
		if ctx.Err() != nil {
			results[i] = Result{SKU: items[i].SKU, Outcome: OutcomeFailed, Error: ctx.Err()}
			p.record(results[i])
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	p.finish()
	return results
}

func (p *Pricer) priceItem(ctx context.Context, item *model.InventoryItem) Result {
	res := Result{SKU: item.SKU}
	if item.Status == model.StatusSold {
		res.Outcome = OutcomeSkipped
		return res
	}

	market := item.MarketPrice
	if p.provider != nil {
		fresh, err := p.lookup(ctx, item)
		switch {
		case err == nil:
			market = fresh
		case market > 0:
			p.log.Warnw("market price lookup failed, using stored price",
				"sku", item.SKU, "card", item.Card.ID, "error", err)
		default:
			res.Outcome = OutcomeFailed
			res.Error = errors.Wrapf(err, "market price for %s", item.SKU)
			return res
		}
	}

	res.Breakdown = p.engine.Breakdown(market, item.AcquisitionType, item.Condition)
	err := p.store.UpdatePrices(ctx, item.SKU, res.Breakdown.MarketPrice, res.Breakdown.CostBasis, res.Breakdown.SellPrice)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = errors.Wrapf(err, "update prices for %s", item.SKU)
		return res
	}

	res.Outcome = OutcomePriced
	res.SellPrice = res.Breakdown.SellPrice
	if item.Locked() {
		res.Outcome = OutcomeLocked
		res.SellPrice = item.SellPrice
	}
	return res
}

// lookup asks the provider with rate limiting, a per-attempt timeout and
// exponential backoff on transient errors.
func (p *Pricer) lookup(ctx context.Context, item *model.InventoryItem) (float64, error) {
	printing := item.Printing
	if printing == "" {
		printing = p.printing
	}

	start := time.Now()
	defer func() {
		p.mu.Lock()
		p.metrics.Lookups++
		p.metrics.TotalLatency += time.Since(start)
		p.mu.Unlock()
	}()

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * p.backoff
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		price, err := p.provider.MarketPrice(attemptCtx, item.Card, printing)
		cancel()
		if err == nil {
			return price, nil
		}
		lastErr = err
		if !Retryable(err) {
			break
		}
	}
	return 0, lastErr
}

// Retryable reports whether a lookup error is worth another attempt.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporary", "connection reset", "429", "503"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (p *Pricer) record(r Result) {
	p.mu.Lock()
	switch r.Outcome {
	case OutcomePriced:
		p.metrics.Priced++
	case OutcomeLocked:
		p.metrics.Locked++
	case OutcomeSkipped:
		p.metrics.Skipped++
	default:
		p.metrics.Failed++
	}
	m := p.metrics
	p.mu.Unlock()

	if p.progress != nil {
		p.progress(m.Priced+m.Locked+m.Skipped+m.Failed, m.Total)
	}
}

func (p *Pricer) finish() {
	p.mu.Lock()
	p.metrics.EndTime = time.Now()
	m := p.metrics
	p.mu.Unlock()

	p.log.Infow("batch pricing complete",
		"total", m.Total, "priced", m.Priced, "locked", m.Locked,
		"skipped", m.Skipped, "failed", m.Failed, "duration", m.EndTime.Sub(m.StartTime))
}

// Metrics returns a copy of the last run's metrics
func (p *Pricer) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// AverageLatency is the mean market price lookup time
func (m Metrics) AverageLatency() time.Duration {
	if m.Lookups == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.Lookups)
}
