package reprice

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/guarzo/cardshop/internal/batch"
	"github.com/guarzo/cardshop/internal/inventory"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
	"github.com/guarzo/cardshop/internal/settings"
)

type memSettings struct {
	doc *settings.Settings
	err error
}

func (m *memSettings) Load(context.Context) (*settings.Settings, error) { return m.doc, m.err }
func (m *memSettings) Save(_ context.Context, s *settings.Settings) error {
	m.doc = s
	return nil
}

func seedStore(t *testing.T) *inventory.MemoryStore {
	t.Helper()
	store := inventory.NewMemoryStore()
	ctx := context.Background()
	for _, item := range []*model.InventoryItem{
		{SKU: "I1", Condition: model.ConditionNM, AcquisitionType: model.AcquisitionBuy, MarketPrice: 7.2},
		{SKU: "I2", Condition: model.ConditionHP, AcquisitionType: model.AcquisitionTrade, MarketPrice: 120},
		{SKU: "S1", Condition: model.ConditionNM, MarketPrice: 30, SellPrice: 31, Status: model.StatusSold},
	} {
		require.NoError(t, store.Upsert(ctx, item))
	}
	return store
}

func fastBatch() batch.Config {
	return batch.Config{Workers: 2, RateLimit: rate.Inf}
}

func TestRunOnce_UsesStoredRules(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)

	// A single catch-all rule that rounds every condition up to whole dollars.
	var rules pricing.RuleSet
	for _, c := range model.AllConditions() {
		rules = append(rules, pricing.Rule{
			Condition:  c,
			PriceRange: pricing.PriceRange{Min: 0, Max: pricing.Unbounded},
			Strategy:   pricing.RoundStrategy(1, pricing.RoundUp),
			Enabled:    true,
		})
	}
	job := NewJob(Config{
		Inventory: store,
		Settings:  &memSettings{doc: &settings.Settings{Rules: rules}},
		Batch:     fastBatch(),
	})

	m, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Total)
	assert.Equal(t, 2, m.Priced)

	i1, err := store.Get(ctx, "I1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, i1.SellPrice)
	assert.Equal(t, model.StatusPriced, i1.Status)

	sold, err := store.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 31.0, sold.SellPrice)

	last, ok := job.LastMetrics()
	require.True(t, ok)
	assert.Equal(t, m, last)
}

func TestRunOnce_SettingsFailureFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	job := NewJob(Config{
		Inventory: store,
		Settings:  &memSettings{err: errors.New("connection refused")},
		Batch:     fastBatch(),
	})

	_, err := job.RunOnce(ctx)
	require.NoError(t, err)

	want := pricing.NewEngine(pricing.Config{}).SellPrice(120, model.ConditionHP)
	i2, err := store.Get(ctx, "I2")
	require.NoError(t, err)
	assert.Equal(t, want, i2.SellPrice)
}

func TestRunOnce_RequiresInventory(t *testing.T) {
	_, err := NewJob(Config{}).RunOnce(context.Background())
	assert.Error(t, err)

	_, ok := NewJob(Config{}).LastMetrics()
	assert.False(t, ok)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	job := NewJob(Config{Inventory: inventory.NewMemoryStore()})
	err := job.Start(context.Background(), "every tuesday")
	assert.ErrorContains(t, err, "invalid reprice schedule")
}

func TestStart_RunsOnSchedule(t *testing.T) {
	store := seedStore(t)
	job := NewJob(Config{Inventory: store, Batch: fastBatch()})

	require.NoError(t, job.Start(context.Background(), "@every 1s"))
	defer func() { <-job.Stop().Done() }()

	assert.Eventually(t, func() bool {
		_, ok := job.LastMetrics()
		return ok
	}, 5*time.Second, 50*time.Millisecond)
}
