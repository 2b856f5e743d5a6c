package settings

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/logger"
	"github.com/guarzo/cardshop/internal/pricing"
)

// ErrNotConfigured means the store holds no pricing document yet.
var ErrNotConfigured = errors.New("pricing settings not configured")

// Settings is the persisted pricing configuration document.
type Settings struct {
	ConditionMultipliers pricing.Multipliers `json:"conditionMultipliers"`
	// SellMarkup is the shop-wide markup percentage shown on the intake form.
	SellMarkup float64         `json:"sellMarkup"`
	Rules      pricing.RuleSet `json:"rules"`
}

// Defaults returns the built-in configuration.
func Defaults() Settings {
	return Settings{
		ConditionMultipliers: pricing.DefaultMultipliers(),
		SellMarkup:           0,
		Rules:                pricing.DefaultRules(),
	}
}

func (s Settings) Validate() error {
	for cond, m := range s.ConditionMultipliers {
		if !cond.Valid() {
			return errors.Newf("unknown condition %q in multipliers", cond)
		}
		if m < 0 {
			return errors.Newf("multiplier for %s must not be negative", cond)
		}
	}
	return s.Rules.Validate()
}

// Engine builds a pricing engine from this snapshot.
func (s Settings) Engine(locker pricing.Locker) *pricing.Engine {
	return pricing.NewEngine(pricing.Config{
		Rules:       s.Rules,
		Multipliers: s.ConditionMultipliers,
		Locker:      locker,
	})
}

// Store reads and writes the pricing document.
type Store interface {
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// Resolve produces the settings for one pricing pass. Precedence per field is
// override, then the stored document, then the defaults. A store failure is
// logged and never returned.
func Resolve(ctx context.Context, override *Settings, store Store, log *logger.Logger) Settings {
	log = logger.OrNop(log)
	resolved := Defaults()

	if store != nil {
		stored, err := store.Load(ctx)
		switch {
		case errors.Is(err, ErrNotConfigured):
			log.Debugw("no stored pricing settings, using defaults")
		case err != nil:
			log.Warnw("failed to load pricing settings, using defaults", "error", err)
		case stored != nil:
			resolved = merge(resolved, *stored)
		}
	}

	if override != nil {
		resolved = merge(resolved, *override)
	}
	return resolved
}

func merge(base, top Settings) Settings {
	out := Settings{
		ConditionMultipliers: base.ConditionMultipliers.Clone(),
		SellMarkup:           base.SellMarkup,
		Rules:                base.Rules.Clone(),
	}
	// Any non-negative multiplier present in top wins, zero included, matching
	// what Validate accepts.
	for cond, m := range top.ConditionMultipliers {
		if m >= 0 {
			out.ConditionMultipliers[cond] = m
		}
	}
	if top.SellMarkup != 0 {
		out.SellMarkup = top.SellMarkup
	}
	if len(top.Rules) > 0 {
		out.Rules = top.Rules.Clone()
	}
	return out
}
