package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/cardshop/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
	seq  int
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateTestSKU returns a unique SKU for this factory
func (f *TestDataFactory) GenerateTestSKU() string {
	f.seq++
	return fmt.Sprintf("SKU-%05d", f.seq)
}

// GenerateTestCardNumber generates a random card number for testing
func (f *TestDataFactory) GenerateTestCardNumber() string {
	return fmt.Sprintf("%03d", f.rand.Intn(300)+1)
}

// GenerateTestSetName generates a random test set name
func (f *TestDataFactory) GenerateTestSetName() string {
	sets := []string{"Test Base Set", "Test Jungle", "Test Fossil", "Test Rocket", "Test Gym"}
	return sets[f.rand.Intn(len(sets))]
}

// GenerateTestCardName generates a random test card name
func (f *TestDataFactory) GenerateTestCardName() string {
	names := []string{"Test Pikachu", "Test Charizard", "Test Blastoise", "Test Venusaur", "Test Mewtwo"}
	return names[f.rand.Intn(len(names))]
}

// GenerateTestPrice generates a random market price in dollars, whole cents
func (f *TestDataFactory) GenerateTestPrice() float64 {
	return float64(f.rand.Intn(50000)+50) / 100 // Between $0.50 and $500.49
}

// GenerateTestCondition picks one of the known conditions
func (f *TestDataFactory) GenerateTestCondition() model.Condition {
	all := model.AllConditions()
	return all[f.rand.Intn(len(all))]
}

// GenerateTestCard builds a card with a single normal printing quote
func (f *TestDataFactory) GenerateTestCard() model.Card {
	number := f.GenerateTestCardNumber()
	market := f.GenerateTestPrice()
	return model.Card{
		ID:      "test-" + number,
		Name:    f.GenerateTestCardName(),
		SetID:   "test",
		SetName: f.GenerateTestSetName(),
		Number:  number,
		TCGPlayer: &model.TCGPlayerBlock{
			Prices: map[string]model.TCGPlayerPrice{
				"normal": {Market: &market},
			},
		},
	}
}

// GenerateTestItem builds an unpriced intake record
func (f *TestDataFactory) GenerateTestItem() *model.InventoryItem {
	card := f.GenerateTestCard()
	market, _ := card.MarketPrice("normal")
	now := time.Now().UTC()
	return &model.InventoryItem{
		SKU:             f.GenerateTestSKU(),
		Card:            card,
		Printing:        "normal",
		Condition:       f.GenerateTestCondition(),
		AcquisitionType: model.AcquisitionBuy,
		MarketPrice:     market,
		Status:          model.StatusIntake,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// GenerateTestItems builds n intake records with distinct SKUs
func (f *TestDataFactory) GenerateTestItems(n int) []*model.InventoryItem {
	items := make([]*model.InventoryItem, n)
	for i := range items {
		items[i] = f.GenerateTestItem()
	}
	return items
}
