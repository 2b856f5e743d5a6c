package pricing

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

type StrategyType string

const (
	StrategyBin    StrategyType = "bin"
	StrategyRound  StrategyType = "round"
	StrategyMarkup StrategyType = "markup"
)

type RoundDirection string

const (
	RoundUp      RoundDirection = "up"
	RoundDown    RoundDirection = "down"
	RoundNearest RoundDirection = "nearest"
)

// Strategy is a tagged variant: only the fields belonging to Type are read.
type Strategy struct {
	Type StrategyType `json:"type"`

	// bin
	Bins []float64 `json:"bins,omitempty"`

	// round
	RoundTo   float64        `json:"roundTo,omitempty"`
	Direction RoundDirection `json:"direction,omitempty"`

	// markup
	Percentage float64  `json:"percentage,omitempty"`
	MinProfit  *float64 `json:"minProfit,omitempty"`
}

func BinStrategy(bins ...float64) Strategy {
	return Strategy{Type: StrategyBin, Bins: bins}
}

func RoundStrategy(roundTo float64, dir RoundDirection) Strategy {
	return Strategy{Type: StrategyRound, RoundTo: roundTo, Direction: dir}
}

func MarkupStrategy(percentage float64, minProfit *float64) Strategy {
	return Strategy{Type: StrategyMarkup, Percentage: percentage, MinProfit: minProfit}
}

func (s Strategy) clone() Strategy {
	if s.Bins != nil {
		s.Bins = append([]float64(nil), s.Bins...)
	}
	if s.MinProfit != nil {
		v := *s.MinProfit
		s.MinProfit = &v
	}
	return s
}

func (s Strategy) Validate() error {
	switch s.Type {
	case StrategyBin:
		if len(s.Bins) == 0 {
			return errors.New("bin strategy needs at least one bin")
		}
	case StrategyRound:
		if s.RoundTo <= 0 {
			return errors.Newf("round strategy needs a positive roundTo, got %v", s.RoundTo)
		}
		switch s.Direction {
		case "", RoundUp, RoundDown, RoundNearest:
		default:
			return errors.Newf("unknown round direction %q", s.Direction)
		}
	case StrategyMarkup:
	default:
		return errors.Newf("unknown strategy type %q", s.Type)
	}
	return nil
}

// Apply prices p with this strategy. Unknown strategy types and degenerate
// parameters pass the price through unchanged. A non-finite p prices to zero.
func (s Strategy) Apply(p float64) float64 {
	if !finite(p) {
		return 0
	}
	price := decimal.NewFromFloat(p)

	var out decimal.Decimal
	switch s.Type {
	case StrategyBin:
		out = applyBin(price, s.Bins)
	case StrategyRound:
		out = applyRound(price, s.RoundTo, s.Direction)
	case StrategyMarkup:
		out = applyMarkup(price, s.Percentage, s.MinProfit)
	default:
		return p
	}
	return out.InexactFloat64()
}

// applyBin snaps to the closest bin. Ties keep the earlier bin.
func applyBin(price decimal.Decimal, bins []float64) decimal.Decimal {
	if len(bins) == 0 {
		return price
	}
	best := decimal.NewFromFloat(bins[0])
	bestDist := best.Sub(price).Abs()
	for _, b := range bins[1:] {
		candidate := decimal.NewFromFloat(b)
		if dist := candidate.Sub(price).Abs(); dist.LessThan(bestDist) {
			best, bestDist = candidate, dist
		}
	}
	return best
}

func applyRound(price decimal.Decimal, roundTo float64, dir RoundDirection) decimal.Decimal {
	if roundTo <= 0 || !finite(roundTo) {
		return price
	}
	step := decimal.NewFromFloat(roundTo)
	return roundToStep(price, step, dir)
}

var quarter = decimal.RequireFromString("0.25")

// applyMarkup adds max(price*pct/100, minProfit) and lands on a quarter.
// minProfit defaults to zero, so a negative percentage never lowers the price.
func applyMarkup(price decimal.Decimal, percentage float64, minProfit *float64) decimal.Decimal {
	markup := price.Mul(decimal.NewFromFloat(percentage)).Div(decimal.NewFromInt(100))
	floor := decimal.Zero
	if minProfit != nil {
		floor = decimal.NewFromFloat(*minProfit)
	}
	return roundToStep(price.Add(decimal.Max(markup, floor)), quarter, RoundNearest)
}

// roundToStep snaps price to a multiple of step. Nearest rounds halves
// toward +Inf.
func roundToStep(price, step decimal.Decimal, dir RoundDirection) decimal.Decimal {
	q := price.Div(step)
	switch dir {
	case RoundUp:
		q = q.Ceil()
	case RoundDown:
		q = q.Floor()
	default:
		q = q.Add(decimal.NewFromFloat(0.5)).Floor()
	}
	return q.Mul(step)
}
