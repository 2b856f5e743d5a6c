package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/guarzo/cardshop/internal/model"
)

// PriceRange is the half-open interval [Min, Max). Max may be +Inf.
type PriceRange struct {
	Min float64
	Max float64
}

// Unbounded is the upper bound of a catch-all range.
var Unbounded = math.Inf(1)

// Contains reports whether p falls inside [Min, Max).
func (r PriceRange) Contains(p float64) bool {
	return r.Min <= p && p < r.Max
}

func (r PriceRange) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return errors.New("range bounds must be numbers")
	}
	if r.Min >= r.Max {
		return errors.Newf("range min %v must be below max %v", r.Min, r.Max)
	}
	return nil
}

func (r PriceRange) String() string {
	if math.IsInf(r.Max, 1) {
		return fmt.Sprintf("[%g,∞)", r.Min)
	}
	return fmt.Sprintf("[%g,%g)", r.Min, r.Max)
}

type priceRangeJSON struct {
	Min float64  `json:"min"`
	Max *float64 `json:"max"`
}

// MarshalJSON writes an unbounded max as null.
func (r PriceRange) MarshalJSON() ([]byte, error) {
	out := priceRangeJSON{Min: r.Min}
	if !math.IsInf(r.Max, 1) {
		out.Max = &r.Max
	}
	return json.Marshal(out)
}

// UnmarshalJSON treats a null or missing max as unbounded.
func (r *PriceRange) UnmarshalJSON(data []byte) error {
	var in priceRangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Min = in.Min
	r.Max = Unbounded
	if in.Max != nil {
		r.Max = *in.Max
	}
	return nil
}

// Rule prices one condition inside one price range.
type Rule struct {
	Condition  model.Condition `json:"condition"`
	PriceRange PriceRange      `json:"priceRange"`
	Strategy   Strategy        `json:"strategy"`
	Enabled    bool            `json:"enabled"`
}

func (r Rule) matches(price float64, cond model.Condition) bool {
	return r.Enabled && r.Condition == cond && r.PriceRange.Contains(price)
}

// RuleSet is evaluated in order; the first matching rule wins.
type RuleSet []Rule

// Match returns the first enabled rule for cond whose range holds price.
func (rs RuleSet) Match(price float64, cond model.Condition) (Rule, bool) {
	return lo.Find(rs, func(r Rule) bool {
		return r.matches(price, cond)
	})
}

// Clone returns a deep copy so callers cannot mutate a shared rule set.
func (rs RuleSet) Clone() RuleSet {
	if rs == nil {
		return nil
	}
	out := make(RuleSet, len(rs))
	for i, r := range rs {
		r.Strategy = r.Strategy.clone()
		out[i] = r
	}
	return out
}

// Validate reports every malformed rule. The resolver never calls it; it is
// for code that persists a rule set.
func (rs RuleSet) Validate() error {
	var problems []string
	for i, r := range rs {
		if !r.Condition.Valid() {
			problems = append(problems, fmt.Sprintf("rule %d: unknown condition %q", i, r.Condition))
		}
		if err := r.PriceRange.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("rule %d: %v", i, err))
		}
		if err := r.Strategy.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("rule %d: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return errors.Newf("invalid rule set: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DefaultRules is the built-in rule table. Only NM is banded by price; the
// other grades take a flat percentage across the whole range.
func DefaultRules() RuleSet {
	return RuleSet{
		{Condition: model.ConditionNM, PriceRange: PriceRange{0, 5}, Strategy: BinStrategy(0.25, 0.5, 1, 2, 3, 4, 5), Enabled: true},
		{Condition: model.ConditionNM, PriceRange: PriceRange{5, 20}, Strategy: RoundStrategy(0.5, RoundNearest), Enabled: true},
		{Condition: model.ConditionNM, PriceRange: PriceRange{20, 100}, Strategy: RoundStrategy(1.0, RoundNearest), Enabled: true},
		{Condition: model.ConditionNM, PriceRange: PriceRange{100, Unbounded}, Strategy: RoundStrategy(5.0, RoundUp), Enabled: true},
		{Condition: model.ConditionLP, PriceRange: PriceRange{0, Unbounded}, Strategy: MarkupStrategy(-10, nil), Enabled: true},
		{Condition: model.ConditionMP, PriceRange: PriceRange{0, Unbounded}, Strategy: MarkupStrategy(-20, nil), Enabled: true},
		{Condition: model.ConditionHP, PriceRange: PriceRange{0, Unbounded}, Strategy: MarkupStrategy(-35, nil), Enabled: true},
		{Condition: model.ConditionDMG, PriceRange: PriceRange{0, Unbounded}, Strategy: MarkupStrategy(-50, nil), Enabled: true},
	}
}
