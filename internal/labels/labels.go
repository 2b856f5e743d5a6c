package labels

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/guarzo/cardshop/internal/inventory"
	"github.com/guarzo/cardshop/internal/logger"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/pricing"
	"github.com/guarzo/cardshop/internal/report"
)

var Header = []string{"SKU", "Name", "Set", "Number", "Condition", "Price"}

// Label is what gets printed for one item.
type Label struct {
	SKU       string
	Name      string
	SetName   string
	Number    string
	Condition model.Condition
	Price     float64
}

func (l Label) row() []string {
	return []string{l.SKU, l.Name, l.SetName, l.Number, string(l.Condition), strconv.FormatFloat(l.Price, 'f', 2, 64)}
}

type Generator struct {
	engine *pricing.Engine
	store  inventory.Store
	log    *logger.Logger
}

// NewGenerator expects an engine whose locker writes to store.
func NewGenerator(engine *pricing.Engine, store inventory.Store, log *logger.Logger) *Generator {
	return &Generator{engine: engine, store: store, log: logger.OrNop(log)}
}

// Labels loads the items and settles their prices without locking them.
// A stored sell price wins; items never priced get one from the engine,
// which is saved back so the record matches the label.
func (g *Generator) Labels(ctx context.Context, skus []string) ([]Label, error) {
	skus = lo.Uniq(lo.FilterMap(skus, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	}))
	if len(skus) == 0 {
		return nil, errors.New("no skus to label")
	}

	out := make([]Label, 0, len(skus))
	for _, sku := range skus {
		item, err := g.store.Get(ctx, sku)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", sku)
		}
		if item.Status == model.StatusSold {
			return nil, errors.Newf("%s is already sold", sku)
		}

		price := item.SellPrice
		if price <= 0 && item.Locked() {
			return nil, errors.Newf("%s is locked without a sell price", sku)
		}
		if price <= 0 {
			b := g.engine.Breakdown(item.MarketPrice, item.AcquisitionType, item.Condition)
			if b.SellPrice <= 0 {
				return nil, errors.Newf("%s has no market price to label from", sku)
			}
			if err := g.store.UpdatePrices(ctx, sku, b.MarketPrice, b.CostBasis, b.SellPrice); err != nil {
				return nil, errors.Wrapf(err, "save price for %s", sku)
			}
			price = b.SellPrice
		}

		out = append(out, Label{
			SKU:       item.SKU,
			Name:      item.Card.Name,
			SetName:   item.Card.SetName,
			Number:    item.Card.Number,
			Condition: item.Condition.Normalize(),
			Price:     price,
		})
	}
	return out, nil
}

// Generate locks every label's price and then writes the CSV sheet to w.
// The first lock failure aborts the run and nothing is written. Items locked
// before the failure stay locked.
func (g *Generator) Generate(ctx context.Context, w io.Writer, skus []string) ([]Label, error) {
	labels, err := g.Labels(ctx, skus)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	sheet, err := report.NewSheet(&buf, Header)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if err := g.engine.LockSellPrice(ctx, l.SKU); err != nil {
			return nil, err
		}
		if err := sheet.Append(l.row()); err != nil {
			return nil, err
		}
	}
	if err := sheet.Flush(); err != nil {
		return nil, err
	}

	if _, err := buf.WriteTo(w); err != nil {
		return nil, errors.Wrap(err, "write label sheet")
	}
	g.log.Infow("labels generated", "count", sheet.Rows())
	return labels, nil
}
