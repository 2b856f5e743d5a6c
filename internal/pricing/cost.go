package pricing

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/guarzo/cardshop/internal/model"
)

// Multipliers maps a condition to the fraction of market price paid on a buy.
type Multipliers map[model.Condition]float64

// TradeBonus is added to the condition multiplier for trade-ins.
const TradeBonus = 0.05

// DefaultMultipliers returns a fresh copy of the built-in buy table.
func DefaultMultipliers() Multipliers {
	return Multipliers{
		model.ConditionNM:  0.70,
		model.ConditionLP:  0.65,
		model.ConditionMP:  0.55,
		model.ConditionHP:  0.45,
		model.ConditionDMG: 0.35,
	}
}

// For returns the multiplier for cond. Unknown or missing grades use NM.
func (m Multipliers) For(cond model.Condition) float64 {
	if v, ok := m[cond]; ok {
		return v
	}
	if v, ok := m[model.ConditionNM]; ok {
		return v
	}
	return DefaultMultipliers()[model.ConditionNM]
}

func (m Multipliers) Clone() Multipliers {
	out := make(Multipliers, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CalculateCostBasis returns what the shop is considered to have paid for an
// item. Pulls and consignments carry no upfront cost. A market price that is
// not a finite number costs zero.
func CalculateCostBasis(marketPrice float64, acq model.AcquisitionType, cond model.Condition, m Multipliers) float64 {
	if !finite(marketPrice) {
		return 0
	}
	var mult decimal.Decimal
	switch acq {
	case model.AcquisitionBuy:
		mult = decimal.NewFromFloat(m.For(cond))
	case model.AcquisitionTrade:
		mult = decimal.NewFromFloat(m.For(cond)).Add(decimal.NewFromFloat(TradeBonus))
	default:
		return 0
	}
	return decimal.NewFromFloat(marketPrice).Mul(mult).InexactFloat64()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
