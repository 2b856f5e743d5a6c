package inventory

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
)

var ErrNotFound = errors.New("inventory item not found")

// Filter narrows List. Zero values match everything.
type Filter struct {
	Statuses     []model.ItemStatus
	OnlyUnlocked bool
	Limit        int
}

func (f Filter) match(item *model.InventoryItem) bool {
	if f.OnlyUnlocked && item.Locked() {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if item.Status == s {
			return true
		}
	}
	return false
}

// Store is the inventory record collaborator. Implementations must never
// overwrite the sell price of a locked item in UpdatePrices.
type Store interface {
	pricing.Locker

	Get(ctx context.Context, sku string) (*model.InventoryItem, error)
	List(ctx context.Context, f Filter) ([]*model.InventoryItem, error)
	Upsert(ctx context.Context, item *model.InventoryItem) error
	UpdatePrices(ctx context.Context, sku string, market, cost, sell float64) error
}
