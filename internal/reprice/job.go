package reprice

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"github.com/guarzo/cardshop/internal/batch"
	"github.com/guarzo/cardshop/internal/inventory"
	"github.com/guarzo/cardshop/internal/logger"
	"github.com/guarzo/cardshop/internal/marketprice"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/settings"
)

// activeStatuses are the records a repricing pass looks at.
var activeStatuses = []model.ItemStatus{model.StatusIntake, model.StatusPriced, model.StatusLabeled}

type Config struct {
	Inventory inventory.Store
	Settings  settings.Store       // may be nil
	Override  *settings.Settings   // may be nil
	Provider  marketprice.Provider // may be nil
	Batch     batch.Config
	Logger    *logger.Logger
}

// Job reprices active inventory, once or on a cron schedule.
type Job struct {
	cfg  Config
	log  *logger.Logger
	cron *cron.Cron

	mu   sync.Mutex
	last *batch.Metrics
}

func NewJob(cfg Config) *Job {
	log := logger.OrNop(cfg.Logger)
	cl := cronLogger{log}
	return &Job{
		cfg: cfg,
		log: log,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// RunOnce resolves settings a single time and prices every active item
// against that snapshot.
func (j *Job) RunOnce(ctx context.Context) (batch.Metrics, error) {
	if j.cfg.Inventory == nil {
		return batch.Metrics{}, errors.New("no inventory store configured")
	}

	resolved := settings.Resolve(ctx, j.cfg.Override, j.cfg.Settings, j.log)
	engine := resolved.Engine(j.cfg.Inventory)

	items, err := j.cfg.Inventory.List(ctx, inventory.Filter{Statuses: activeStatuses})
	if err != nil {
		return batch.Metrics{}, errors.Wrap(err, "list inventory")
	}
	j.log.Infow("repricing inventory", "items", len(items), "rules", len(resolved.Rules))

	pricer := batch.NewPricer(engine, j.cfg.Inventory, j.cfg.Provider, j.cfg.Batch, j.log)
	for _, r := range pricer.Run(ctx, items) {
		if r.Error != nil {
			j.log.Warnw("repricing failed", "sku", r.SKU, "error", r.Error)
		}
	}

	m := pricer.Metrics()
	j.mu.Lock()
	j.last = &m
	j.mu.Unlock()
	return m, nil
}

// Start schedules RunOnce with a standard five-field cron expression.
// Runs that would overlap a pass still in progress are skipped.
func (j *Job) Start(ctx context.Context, schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Errorw("scheduled repricing failed", "error", err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "invalid reprice schedule %q", schedule)
	}

	j.cron.Start()
	j.log.Infow("reprice scheduler started", "schedule", schedule)
	return nil
}

// Stop halts the scheduler. The returned context is done once any running
// pass has finished.
func (j *Job) Stop() context.Context {
	j.log.Infow("stopping reprice scheduler")
	return j.cron.Stop()
}

// LastMetrics returns the metrics of the most recent pass, if any.
func (j *Job) LastMetrics() (batch.Metrics, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.last == nil {
		return batch.Metrics{}, false
	}
	return *j.last, true
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
