package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/guarzo/cardshop/internal/model"
)

// ErrInvalidSKU is returned when a lock is requested without an identifier.
var ErrInvalidSKU = errors.New("invalid sku")

// fallbackStep is used when no rule covers a price.
var fallbackStep = decimal.RequireFromString("0.5")

// CalculateSellPrice resolves the display price for a card. Prices that are
// not positive finite numbers price to zero. Unrecognized conditions price as
// NM. When no rule matches, the price is rounded to the nearest 0.50.
func CalculateSellPrice(marketPrice float64, cond model.Condition, rules RuleSet) float64 {
	if !finite(marketPrice) || marketPrice <= 0 {
		return 0
	}
	cond = cond.Normalize()
	rule, ok := rules.Match(marketPrice, cond)
	if !ok {
		return roundToStep(decimal.NewFromFloat(marketPrice), fallbackStep, RoundNearest).InexactFloat64()
	}
	return rule.Strategy.Apply(marketPrice)
}

// Breakdown is the full pricing picture for one item.
type Breakdown struct {
	MarketPrice      float64               `json:"marketPrice"`
	CostBasis        float64               `json:"costBasis"`
	SellPrice        float64               `json:"sellPrice"`
	Profit           float64               `json:"profit"`
	ProfitPercentage float64               `json:"profitPercentage"`
	AcquisitionType  model.AcquisitionType `json:"acquisitionType"`
	Condition        model.Condition       `json:"condition"`
}

// ZeroCostProfitPercentage is reported when an item cost nothing.
const ZeroCostProfitPercentage = 100

// LockPatch is the write the inventory store applies to finalize a price.
type LockPatch struct {
	SellPriceLockedAt time.Time
	Status            model.ItemStatus
}

func NewLockPatch(now time.Time) LockPatch {
	return LockPatch{SellPriceLockedAt: now, Status: model.StatusLabeled}
}

// Locker persists a lock against an inventory record.
type Locker interface {
	ApplyLock(ctx context.Context, sku string, patch LockPatch) error
}

// Config is a resolved pricing configuration.
type Config struct {
	Rules       RuleSet
	Multipliers Multipliers
	Locker      Locker
	Now         func() time.Time
}

// Engine prices items against a fixed configuration snapshot. It holds no
// mutable state and may be shared across goroutines.
type Engine struct {
	rules       RuleSet
	multipliers Multipliers
	locker      Locker
	now         func() time.Time
}

// NewEngine copies cfg. Empty rules or multipliers fall back to the defaults.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		rules:       cfg.Rules.Clone(),
		multipliers: cfg.Multipliers.Clone(),
		locker:      cfg.Locker,
		now:         cfg.Now,
	}
	if len(e.rules) == 0 {
		e.rules = DefaultRules()
	}
	if len(e.multipliers) == 0 {
		e.multipliers = DefaultMultipliers()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Rules returns a copy of the active rule set.
func (e *Engine) Rules() RuleSet { return e.rules.Clone() }

func (e *Engine) Multipliers() Multipliers { return e.multipliers.Clone() }

func (e *Engine) CostBasis(marketPrice float64, acq model.AcquisitionType, cond model.Condition) float64 {
	return CalculateCostBasis(marketPrice, acq, cond.Normalize(), e.multipliers)
}

func (e *Engine) SellPrice(marketPrice float64, cond model.Condition) float64 {
	return CalculateSellPrice(marketPrice, cond.Normalize(), e.rules)
}

// Breakdown composes cost basis and sell price into one value. A non-finite
// market price is reported as zero.
func (e *Engine) Breakdown(marketPrice float64, acq model.AcquisitionType, cond model.Condition) Breakdown {
	if !finite(marketPrice) {
		marketPrice = 0
	}
	cond = cond.Normalize()
	cost := e.CostBasis(marketPrice, acq, cond)
	sell := e.SellPrice(marketPrice, cond)

	profit := decimal.NewFromFloat(sell).Sub(decimal.NewFromFloat(cost))
	pct := float64(ZeroCostProfitPercentage)
	if cost != 0 {
		pct = profit.Div(decimal.NewFromFloat(cost)).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	return Breakdown{
		MarketPrice:      marketPrice,
		CostBasis:        cost,
		SellPrice:        sell,
		Profit:           profit.InexactFloat64(),
		ProfitPercentage: pct,
		AcquisitionType:  acq,
		Condition:        cond,
	}
}

// LockSellPrice finalizes an item's sell price and marks it labeled.
// Persistence errors are returned to the caller.
func (e *Engine) LockSellPrice(ctx context.Context, sku string) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return ErrInvalidSKU
	}
	if e.locker == nil {
		return errors.New("no inventory store configured for price locking")
	}
	if err := e.locker.ApplyLock(ctx, sku, NewLockPatch(e.now())); err != nil {
		return errors.Wrapf(err, "lock sell price for %s", sku)
	}
	return nil
}
