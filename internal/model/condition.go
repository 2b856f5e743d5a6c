package model

import (
	"sort"
	"strings"
)

// Condition is the physical grade of a raw card, best to worst.
type Condition string

const (
	ConditionNM  Condition = "NM"  // Near Mint
	ConditionLP  Condition = "LP"  // Lightly Played
	ConditionMP  Condition = "MP"  // Moderately Played
	ConditionHP  Condition = "HP"  // Heavily Played
	ConditionDMG Condition = "DMG" // Damaged
)

var conditionMap = map[string]Condition{
	"nm":                ConditionNM,
	"near mint":         ConditionNM,
	"near-mint":         ConditionNM,
	"mint":              ConditionNM,
	"lp":                ConditionLP,
	"lightly played":    ConditionLP,
	"light play":        ConditionLP,
	"excellent":         ConditionLP,
	"mp":                ConditionMP,
	"moderately played": ConditionMP,
	"played":            ConditionMP,
	"hp":                ConditionHP,
	"heavily played":    ConditionHP,
	"dmg":               ConditionDMG,
	"damaged":           ConditionDMG,
	"poor":              ConditionDMG,
}

// ParseCondition normalizes free-form condition text. Anything it does not
// recognize is treated as Near Mint.
func ParseCondition(raw string) Condition {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if c, ok := conditionMap[normalized]; ok {
		return c
	}
	return ConditionNM
}

// Valid reports whether c is one of the five grades.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNM, ConditionLP, ConditionMP, ConditionHP, ConditionDMG:
		return true
	}
	return false
}

// Normalize returns c if valid, otherwise NM.
func (c Condition) Normalize() Condition {
	if c.Valid() {
		return c
	}
	return ParseCondition(string(c))
}

// AllConditions returns every grade, best first.
func AllConditions() []Condition {
	return []Condition{ConditionNM, ConditionLP, ConditionMP, ConditionHP, ConditionDMG}
}

// AcquisitionType records how the shop came to own an item.
type AcquisitionType string

const (
	AcquisitionBuy         AcquisitionType = "buy"
	AcquisitionTrade       AcquisitionType = "trade"
	AcquisitionPull        AcquisitionType = "pull"
	AcquisitionConsignment AcquisitionType = "consignment"
)

// ParseAcquisitionType lower-cases the input. Unknown values are kept so the
// cost-basis calculator can price them at zero.
func ParseAcquisitionType(raw string) AcquisitionType {
	return AcquisitionType(strings.ToLower(strings.TrimSpace(raw)))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
