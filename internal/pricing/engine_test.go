package pricing

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/cardshop/internal/model"
)

type recordingLocker struct {
	sku   string
	patch LockPatch
	err   error
	calls int
}

func (l *recordingLocker) ApplyLock(_ context.Context, sku string, patch LockPatch) error {
	l.calls++
	l.sku = sku
	l.patch = patch
	return l.err
}

func TestEngine_Breakdown(t *testing.T) {
	e := NewEngine(Config{})

	b := e.Breakdown(100, model.AcquisitionBuy, model.ConditionNM)
	assert.Equal(t, 100.0, b.MarketPrice)
	assert.Equal(t, 70.0, b.CostBasis)
	assert.Equal(t, 100.0, b.SellPrice)
	assert.Equal(t, 30.0, b.Profit)
	assert.InDelta(t, 42.857, b.ProfitPercentage, 0.001)
	assert.Equal(t, model.AcquisitionBuy, b.AcquisitionType)
	assert.Equal(t, model.ConditionNM, b.Condition)

	b = e.Breakdown(50, model.AcquisitionTrade, model.ConditionLP)
	assert.Equal(t, 35.0, b.CostBasis)
	assert.Equal(t, 50.0, b.SellPrice)
	assert.Equal(t, 15.0, b.Profit)
}

func TestEngine_BreakdownZeroCost(t *testing.T) {
	e := NewEngine(Config{})

	b := e.Breakdown(12.3, model.AcquisitionPull, model.ConditionNM)
	assert.Zero(t, b.CostBasis)
	assert.Equal(t, 12.5, b.SellPrice)
	assert.Equal(t, 12.5, b.Profit)
	assert.Equal(t, float64(ZeroCostProfitPercentage), b.ProfitPercentage)
}

func TestEngine_BreakdownNonFiniteMarket(t *testing.T) {
	e := NewEngine(Config{})
	for _, p := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		for _, acq := range []model.AcquisitionType{model.AcquisitionBuy, model.AcquisitionTrade, model.AcquisitionPull} {
			b := e.Breakdown(p, acq, model.ConditionNM)
			assert.Zero(t, b.MarketPrice, "%v %s", p, acq)
			assert.Zero(t, b.CostBasis, "%v %s", p, acq)
			assert.Zero(t, b.SellPrice, "%v %s", p, acq)
			assert.Zero(t, b.Profit, "%v %s", p, acq)
			assert.Equal(t, float64(ZeroCostProfitPercentage), b.ProfitPercentage)
		}
	}
}

func TestEngine_BreakdownNormalizesCondition(t *testing.T) {
	e := NewEngine(Config{})
	b := e.Breakdown(10, model.AcquisitionBuy, model.Condition("mint-ish"))
	assert.Equal(t, model.ConditionNM, b.Condition)
	assert.Equal(t, 7.0, b.CostBasis)
}

func TestEngine_UsesInjectedConfig(t *testing.T) {
	rules := RuleSet{{Condition: model.ConditionNM, PriceRange: PriceRange{0, Unbounded}, Strategy: BinStrategy(42), Enabled: true}}
	e := NewEngine(Config{Rules: rules, Multipliers: Multipliers{model.ConditionNM: 0.5}})

	assert.Equal(t, 42.0, e.SellPrice(3, model.ConditionNM))
	assert.Equal(t, 5.0, e.CostBasis(10, model.AcquisitionBuy, model.ConditionNM))

	// the engine keeps its own copy
	rules[0].Strategy.Bins[0] = 1
	assert.Equal(t, 42.0, e.SellPrice(3, model.ConditionNM))

	got := e.Rules()
	got[0].Enabled = false
	assert.Equal(t, 42.0, e.SellPrice(3, model.ConditionNM))
}

func TestEngine_LockSellPrice(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locker := &recordingLocker{}
	e := NewEngine(Config{Locker: locker, Now: func() time.Time { return now }})

	require.NoError(t, e.LockSellPrice(context.Background(), " SKU-1 "))
	assert.Equal(t, "SKU-1", locker.sku)
	assert.Equal(t, now, locker.patch.SellPriceLockedAt)
	assert.Equal(t, model.StatusLabeled, locker.patch.Status)
}

func TestEngine_LockSellPricePropagatesErrors(t *testing.T) {
	storeErr := errors.New("connection reset")
	locker := &recordingLocker{err: storeErr}
	e := NewEngine(Config{Locker: locker})

	err := e.LockSellPrice(context.Background(), "SKU-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, storeErr))
	assert.Contains(t, err.Error(), "SKU-2")

	err = e.LockSellPrice(context.Background(), "  ")
	assert.True(t, errors.Is(err, ErrInvalidSKU))
	assert.Equal(t, 1, locker.calls)

	assert.Error(t, NewEngine(Config{}).LockSellPrice(context.Background(), "SKU-3"))
}

func TestDefaultRules_Coverage(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, rules.Validate())

	for _, cond := range model.AllConditions() {
		for _, p := range []float64{0, 4.99, 5, 19.99, 20, 99.99, 100, 1e6} {
			_, ok := rules.Match(p, cond)
			assert.True(t, ok, "%s has no rule at %v", cond, p)
		}
	}
}

func TestRuleSet_Validate(t *testing.T) {
	bad := RuleSet{
		{Condition: "EX", PriceRange: PriceRange{0, 10}, Strategy: BinStrategy(1)},
		{Condition: model.ConditionNM, PriceRange: PriceRange{10, 10}, Strategy: BinStrategy(1)},
		{Condition: model.ConditionNM, PriceRange: PriceRange{0, 10}, Strategy: BinStrategy()},
		{Condition: model.ConditionNM, PriceRange: PriceRange{0, 10}, Strategy: RoundStrategy(0, RoundUp)},
		{Condition: model.ConditionNM, PriceRange: PriceRange{0, 10}, Strategy: RoundStrategy(1, "sideways")},
		{Condition: model.ConditionNM, PriceRange: PriceRange{0, 10}, Strategy: Strategy{Type: "tiered"}},
	}

	err := bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"rule 0", "rule 1", "rule 2", "rule 3", "rule 4", "rule 5"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestPriceRange_JSONUnboundedMax(t *testing.T) {
	data, err := json.Marshal(PriceRange{Min: 100, Max: Unbounded})
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":100,"max":null}`, string(data))

	var r PriceRange
	require.NoError(t, json.Unmarshal([]byte(`{"min":5}`), &r))
	assert.True(t, math.IsInf(r.Max, 1))
	assert.True(t, r.Contains(1e9))

	require.NoError(t, json.Unmarshal([]byte(`{"min":5,"max":20}`), &r))
	assert.Equal(t, PriceRange{Min: 5, Max: 20}, r)
	assert.Equal(t, "[5,20)", r.String())
}
