package marketprice

import (
	"context"
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/model"
)

// PriceCaps are the highest believable quotes by rarity bucket.
var PriceCaps = map[string]float64{
	"common":     500.00,
	"uncommon":   1000.00,
	"rare":       5000.00,
	"holorare":   10000.00,
	"ultrarare":  15000.00,
	"secretrare": 20000.00,
	"specialart": 25000.00,
	"default":    30000.00,
}

// placeholderPrices show up in feeds as test or joke values.
var placeholderPrices = []float64{69420, 12345.67, 99999.99, 11111.11, 88888.88}

// Sanitized rejects quotes from the wrapped provider that cannot be real, so
// a Chain moves on to the next source instead of pricing from garbage.
type Sanitized struct {
	Provider
	Caps map[string]float64 // overrides PriceCaps by bucket
}

func (s Sanitized) MarketPrice(ctx context.Context, card model.Card, printing string) (float64, error) {
	price, err := s.Provider.MarketPrice(ctx, card, printing)
	if err != nil {
		return 0, err
	}
	if reason := s.reject(price, card.Rarity); reason != "" {
		return 0, errors.Wrapf(ErrNoPrice, "%s quote %.2f for %s %s", s.Name(), price, card.ID, reason)
	}
	return price, nil
}

func (s Sanitized) reject(price float64, rarity string) string {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return "is not a positive number"
	}
	for _, p := range placeholderPrices {
		if math.Abs(price-p) < 0.01 {
			return "is a placeholder value"
		}
	}
	if limit := s.capFor(rarity); price > limit {
		return "exceeds the rarity cap"
	}
	return ""
}

func (s Sanitized) capFor(rarity string) float64 {
	bucket := rarityBucket(rarity)
	if v, ok := s.Caps[bucket]; ok {
		return v
	}
	return PriceCaps[bucket]
}

func rarityBucket(rarity string) string {
	r := strings.ToLower(rarity)
	switch {
	case r == "":
		return "default"
	case strings.Contains(r, "uncommon"):
		return "uncommon"
	case strings.Contains(r, "common"):
		return "common"
	case strings.Contains(r, "secret"):
		return "secretrare"
	case strings.Contains(r, "ultra"):
		return "ultrarare"
	case strings.Contains(r, "special") || strings.Contains(r, "illustration"):
		return "specialart"
	case strings.Contains(r, "holo"):
		return "holorare"
	case strings.Contains(r, "rare"):
		return "rare"
	}
	return "default"
}
