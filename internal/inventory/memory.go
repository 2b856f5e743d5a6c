package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	items map[string]*model.InventoryItem
	now   func() time.Time
	mu    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*model.InventoryItem),
		now:   time.Now,
	}
}

func copyItem(item *model.InventoryItem) *model.InventoryItem {
	c := *item
	if item.SellPriceLockedAt != nil {
		t := *item.SellPriceLockedAt
		c.SellPriceLockedAt = &t
	}
	return &c
}

func (m *MemoryStore) Get(_ context.Context, sku string) (*model.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[sku]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// List returns matching items ordered by SKU.
func (m *MemoryStore) List(_ context.Context, f Filter) ([]*model.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.InventoryItem, 0, len(m.items))
	for _, item := range m.items {
		if f.match(item) {
			out = append(out, copyItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Upsert(_ context.Context, item *model.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c := copyItem(item)
	if existing, ok := m.items[item.SKU]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.Status == "" {
		c.Status = model.StatusIntake
	}
	c.UpdatedAt = now
	m.items[item.SKU] = c
	return nil
}

func (m *MemoryStore) UpdatePrices(_ context.Context, sku string, market, cost, sell float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[sku]
	if !ok {
		return ErrNotFound
	}
	item.MarketPrice = market
	item.CostBasis = cost
	if !item.Locked() {
		item.SellPrice = sell
	}
	if item.Status == model.StatusIntake {
		item.Status = model.StatusPriced
	}
	item.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) ApplyLock(_ context.Context, sku string, patch pricing.LockPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[sku]
	if !ok {
		return ErrNotFound
	}
	lockedAt := patch.SellPriceLockedAt
	item.SellPriceLockedAt = &lockedAt
	item.Status = patch.Status
	item.UpdatedAt = m.now()
	return nil
}
