package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/guarzo/cardshop/internal/inventory"
	"github.com/guarzo/cardshop/internal/marketprice"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
	"github.com/guarzo/cardshop/internal/testutil"
)

type stubProvider struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   []error // returned in order before prices are served
	calls  int32
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) MarketPrice(_ context.Context, card model.Card, _ string) (float64, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	price, ok := s.prices[card.ID]
	if !ok {
		return 0, marketprice.ErrNoPrice
	}
	return price, nil
}

func fastConfig() Config {
	return Config{Workers: 4, RateLimit: rate.Inf, Backoff: time.Millisecond}
}

func seed(t *testing.T, store inventory.Store, items ...*model.InventoryItem) {
	t.Helper()
	for _, item := range items {
		require.NoError(t, store.Upsert(context.Background(), item))
	}
}

func TestPricer_PricesFromStoredMarketPrice(t *testing.T) {
	ctx := context.Background()
	store := inventory.NewMemoryStore()
	engine := pricing.NewEngine(pricing.Config{Locker: store})

	item := &model.InventoryItem{SKU: "A1", Condition: model.ConditionLP, AcquisitionType: model.AcquisitionBuy, MarketPrice: 50}
	seed(t, store, item)

	results := NewPricer(engine, store, nil, fastConfig(), nil).Run(ctx, []*model.InventoryItem{item})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Error)
	assert.Equal(t, OutcomePriced, results[0].Outcome)

	want := engine.Breakdown(50, model.AcquisitionBuy, model.ConditionLP)
	assert.Equal(t, want, results[0].Breakdown)

	got, err := store.Get(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, want.SellPrice, got.SellPrice)
	assert.InDelta(t, 32.5, got.CostBasis, 1e-9)
	assert.Equal(t, model.StatusPriced, got.Status)
}

func TestPricer_LockedItemKeepsSellPrice(t *testing.T) {
	ctx := context.Background()
	store := inventory.NewMemoryStore()
	engine := pricing.NewEngine(pricing.Config{Locker: store})

	item := &model.InventoryItem{SKU: "L1", Condition: model.ConditionNM, AcquisitionType: model.AcquisitionBuy, MarketPrice: 10, SellPrice: 12}
	seed(t, store, item)
	require.NoError(t, engine.LockSellPrice(ctx, "L1"))

	locked, err := store.Get(ctx, "L1")
	require.NoError(t, err)

	provider := &stubProvider{prices: map[string]float64{"": 40}}
	p := NewPricer(engine, store, provider, fastConfig(), nil)
	results := p.Run(ctx, []*model.InventoryItem{locked})

	require.NoError(t, results[0].Error)
	assert.Equal(t, OutcomeLocked, results[0].Outcome)
	assert.Equal(t, 12.0, results[0].SellPrice)

	got, err := store.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.SellPrice)
	assert.Equal(t, 40.0, got.MarketPrice)
	assert.Equal(t, 1, p.Metrics().Locked)
}

func TestPricer_SkipsSoldItems(t *testing.T) {
	store := inventory.NewMemoryStore()
	item := &model.InventoryItem{SKU: "S1", MarketPrice: 10, Status: model.StatusSold}
	seed(t, store, item)

	p := NewPricer(pricing.NewEngine(pricing.Config{}), store, nil, fastConfig(), nil)
	results := p.Run(context.Background(), []*model.InventoryItem{item})

	assert.Equal(t, OutcomeSkipped, results[0].Outcome)
	assert.Equal(t, 1, p.Metrics().Skipped)
}

func TestPricer_LookupFailure(t *testing.T) {
	ctx := context.Background()
	store := inventory.NewMemoryStore()
	withStored := &model.InventoryItem{SKU: "F1", Card: model.Card{ID: "x-1"}, MarketPrice: 8}
	withoutStored := &model.InventoryItem{SKU: "F2", Card: model.Card{ID: "x-2"}}
	seed(t, store, withStored, withoutStored)

	provider := &stubProvider{prices: map[string]float64{}}
	p := NewPricer(pricing.NewEngine(pricing.Config{}), store, provider, fastConfig(), nil)
	results := p.Run(ctx, []*model.InventoryItem{withStored, withoutStored})

	assert.Equal(t, OutcomePriced, results[0].Outcome)
	assert.Equal(t, 8.0, results[0].Breakdown.MarketPrice)

	assert.Equal(t, OutcomeFailed, results[1].Outcome)
	assert.True(t, errors.Is(results[1].Error, marketprice.ErrNoPrice))

	m := p.Metrics()
	assert.Equal(t, 1, m.Priced)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, 2, m.Lookups)
}

func TestPricer_RetriesTransientErrors(t *testing.T) {
	store := inventory.NewMemoryStore()
	item := &model.InventoryItem{SKU: "R1", Card: model.Card{ID: "r-1"}}
	seed(t, store, item)

	provider := &stubProvider{
		prices: map[string]float64{"r-1": 3},
		errs:   []error{errors.New("pokemontcg 503: unavailable")},
	}
	cfg := fastConfig()
	cfg.Retries = 2
	results := NewPricer(pricing.NewEngine(pricing.Config{}), store, provider, cfg, nil).
		Run(context.Background(), []*model.InventoryItem{item})

	require.NoError(t, results[0].Error)
	assert.Equal(t, 3.0, results[0].Breakdown.MarketPrice)
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.calls))
}

func TestPricer_NoRetryOnPermanentErrors(t *testing.T) {
	store := inventory.NewMemoryStore()
	item := &model.InventoryItem{SKU: "R2", Card: model.Card{ID: "r-2"}}
	seed(t, store, item)

	provider := &stubProvider{errs: []error{errors.New("pokemontcg 404: not found")}}
	cfg := fastConfig()
	cfg.Retries = 3
	results := NewPricer(pricing.NewEngine(pricing.Config{}), store, provider, cfg, nil).
		Run(context.Background(), []*model.InventoryItem{item})

	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.calls))
}

func TestPricer_ConcurrentRunMatchesSerialPricing(t *testing.T) {
	ctx := context.Background()
	store := inventory.NewMemoryStore()
	engine := pricing.NewEngine(pricing.Config{})
	items := testutil.NewTestDataFactory(42).GenerateTestItems(60)
	seed(t, store, items...)

	cfg := fastConfig()
	cfg.Workers = 8
	p := NewPricer(engine, store, nil, cfg, nil)
	results := p.Run(ctx, items)

	require.Len(t, results, len(items))
	for i, res := range results {
		require.NoError(t, res.Error)
		assert.Equal(t, items[i].SKU, res.SKU)
		want := engine.SellPrice(items[i].MarketPrice, items[i].Condition)
		assert.Equal(t, want, res.SellPrice, "sku %s", res.SKU)
	}

	m := p.Metrics()
	assert.Equal(t, len(items), m.Total)
	assert.Equal(t, len(items), m.Priced)
	assert.False(t, m.EndTime.Before(m.StartTime))
}

func TestPricer_CanceledContext(t *testing.T) {
	store := inventory.NewMemoryStore()
	items := testutil.NewTestDataFactory(3).GenerateTestItems(5)
	seed(t, store, items...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPricer(pricing.NewEngine(pricing.Config{}), store, nil, fastConfig(), nil)
	results := p.Run(ctx, items)
	for _, res := range results {
		assert.Equal(t, OutcomeFailed, res.Outcome)
	}
	assert.Equal(t, 5, p.Metrics().Failed)
}

func TestPricer_EmptyBatch(t *testing.T) {
	p := NewPricer(pricing.NewEngine(pricing.Config{}), inventory.NewMemoryStore(), nil, fastConfig(), nil)
	assert.Empty(t, p.Run(context.Background(), nil))
	assert.Equal(t, 0, p.Metrics().Total)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{errors.New("dial tcp: i/o timeout"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("pokemontcg 429: slow down"), true},
		{errors.New("pokemontcg 404: not found"), false},
		{marketprice.ErrNoPrice, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Retryable(tt.err), "%v", tt.err)
	}
}

func TestMetrics_AverageLatency(t *testing.T) {
	assert.Zero(t, Metrics{}.AverageLatency())
	assert.Equal(t, 2*time.Second, Metrics{Lookups: 2, TotalLatency: 4 * time.Second}.AverageLatency())
}

func TestPricer_ReportsProgress(t *testing.T) {
	store := inventory.NewMemoryStore()
	items := testutil.NewTestDataFactory(9).GenerateTestItems(10)
	seed(t, store, items...)

	var mu sync.Mutex
	var seen []int
	cfg := fastConfig()
	cfg.OnProgress = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, total)
		seen = append(seen, done)
	}
	NewPricer(pricing.NewEngine(pricing.Config{}), store, nil, cfg, nil).Run(context.Background(), items)

	require.Len(t, seen, 10)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seen)
}
