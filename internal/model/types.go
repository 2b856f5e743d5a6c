package model

import "time"

// Card is the catalog identity of a single card plus the market prices the
// pricing API reported for it.
type Card struct {
	ID        string
	Name      string
	SetID     string
	SetName   string
	Number    string
	Rarity    string
	TCGPlayer *TCGPlayerBlock // may be nil
}

// TCGPlayerPrice is one printing's price quote.
type TCGPlayerPrice struct {
	Low       *float64 `json:"low,omitempty"`
	Mid       *float64 `json:"mid,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Market    *float64 `json:"market,omitempty"`
	DirectLow *float64 `json:"directLow,omitempty"`
}

type TCGPlayerBlock struct {
	URL     string
	Updated string
	// Keyed by printing: "normal", "holofoil", "reverseHolofoil", ...
	Prices map[string]TCGPlayerPrice
}

// MarketPrice picks the market quote for a printing. It falls back to the mid
// quote, then to the first printing (in name order) that has any usable quote.
func (c Card) MarketPrice(printing string) (float64, bool) {
	if c.TCGPlayer == nil || len(c.TCGPlayer.Prices) == 0 {
		return 0, false
	}
	if p, ok := c.TCGPlayer.Prices[printing]; ok {
		if v, ok := p.quote(); ok {
			return v, true
		}
	}
	for _, name := range sortedKeys(c.TCGPlayer.Prices) {
		if v, ok := c.TCGPlayer.Prices[name].quote(); ok {
			return v, true
		}
	}
	return 0, false
}

func (p TCGPlayerPrice) quote() (float64, bool) {
	if p.Market != nil && *p.Market > 0 {
		return *p.Market, true
	}
	if p.Mid != nil && *p.Mid > 0 {
		return *p.Mid, true
	}
	return 0, false
}

// ItemStatus is the lifecycle state of an inventory record.
type ItemStatus string

const (
	StatusIntake  ItemStatus = "intake"
	StatusPriced  ItemStatus = "priced"
	StatusLabeled ItemStatus = "labeled"
	StatusSold    ItemStatus = "sold"
)

// InventoryItem is one physical card on hand, keyed by SKU.
type InventoryItem struct {
	SKU               string          `json:"sku"`
	Card              Card            `json:"card"`
	Printing          string          `json:"printing,omitempty"`
	Condition         Condition       `json:"condition"`
	AcquisitionType   AcquisitionType `json:"acquisitionType"`
	MarketPrice       float64         `json:"marketPrice"`
	CostBasis         float64         `json:"costBasis"`
	SellPrice         float64         `json:"sellPrice"`
	Status            ItemStatus      `json:"status"`
	SellPriceLockedAt *time.Time      `json:"sellPriceLockedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Locked reports whether the sell price has been finalized.
func (i InventoryItem) Locked() bool {
	return i.SellPriceLockedAt != nil
}
