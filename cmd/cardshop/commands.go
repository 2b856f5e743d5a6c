package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/cache"
	"github.com/guarzo/cardshop/internal/labels"
	"github.com/guarzo/cardshop/internal/marketprice"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/progress"
	"github.com/guarzo/cardshop/internal/reprice"
	"github.com/guarzo/cardshop/internal/settings"
)

func (a *app) run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "price":
		return a.price(ctx, args, out)
	case "import":
		return a.importItems(ctx, args)
	case "reprice":
		return a.reprice(ctx, args, out)
	case "schedule":
		return a.schedule(ctx)
	case "label":
		return a.label(ctx, args, out)
	case "rules":
		return writeJSON(out, settings.Resolve(ctx, nil, a.settings, a.log))
	case "rules-reset":
		return a.resetRules(ctx)
	case "cache-clear":
		return a.clearCache(args, out)
	default:
		return errors.Newf("unknown command %q\n%s", cmd, usage)
	}
}

func (a *app) price(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	market := fs.Float64("market", 0, "market price in dollars")
	cardID := fs.String("card", "", "look the market price up by card id instead of -market")
	printing := fs.String("printing", a.cfg.Reprice.Printing, "printing to quote with -card")
	cond := fs.String("condition", "NM", "card condition (NM, LP, MP, HP, DMG)")
	acq := fs.String("acquisition", "buy", "acquisition type (buy, trade, pull, consignment)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *cardID != "" {
		p, err := a.provider()
		if err != nil {
			return err
		}
		if *market, err = p.MarketPrice(ctx, model.Card{ID: *cardID}, *printing); err != nil {
			return errors.Wrapf(err, "market price for %s", *cardID)
		}
	}

	engine := settings.Resolve(ctx, nil, a.settings, a.log).Engine(nil)
	b := engine.Breakdown(*market, model.ParseAcquisitionType(*acq), model.ParseCondition(*cond))
	return writeJSON(out, b)
}

func (a *app) importItems(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "JSON array of inventory items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("import requires -file")
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		return errors.Wrapf(err, "read %s", *path)
	}
	var items []model.InventoryItem
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrapf(err, "decode %s", *path)
	}

	for i := range items {
		item := &items[i]
		if item.SKU == "" {
			return errors.Newf("item %d has no sku", i)
		}
		item.Condition = item.Condition.Normalize()
		item.AcquisitionType = model.ParseAcquisitionType(string(item.AcquisitionType))
		if err := a.inventory.Upsert(ctx, item); err != nil {
			return errors.Wrapf(err, "save %s", item.SKU)
		}
	}
	a.log.Infow("Imported inventory", "items", len(items), "file", *path)
	return nil
}

func (a *app) job(onProgress func(done, total int)) (*reprice.Job, error) {
	p, err := a.provider()
	if err != nil {
		return nil, err
	}
	bc := a.batchConfig()
	bc.OnProgress = onProgress
	return reprice.NewJob(reprice.Config{
		Inventory: a.inventory,
		Settings:  a.settings,
		Provider:  p,
		Batch:     bc,
		Logger:    a.log,
	}), nil
}

func (a *app) reprice(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reprice", flag.ContinueOnError)
	quiet := fs.Bool("quiet", false, "suppress the progress bar")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var bar *progress.Indicator
	if *quiet {
		bar = progress.NewIndicator(nil, "Repricing")
	} else {
		bar = progress.NewIndicator(os.Stderr, "Repricing")
	}

	job, err := a.job(bar.Update)
	if err != nil {
		return err
	}
	m, err := job.RunOnce(ctx)
	if err != nil {
		return err
	}
	bar.Finish()
	return writeJSON(out, map[string]interface{}{
		"total":          m.Total,
		"priced":         m.Priced,
		"locked":         m.Locked,
		"skipped":        m.Skipped,
		"failed":         m.Failed,
		"averageLookup":  m.AverageLatency().String(),
		"durationSecond": m.EndTime.Sub(m.StartTime).Seconds(),
	})
}

func (a *app) schedule(ctx context.Context) error {
	job, err := a.job(nil)
	if err != nil {
		return err
	}
	if err := job.Start(ctx, a.cfg.Reprice.Schedule); err != nil {
		return err
	}
	<-ctx.Done()
	<-job.Stop().Done()
	return nil
}

func (a *app) label(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("label", flag.ContinueOnError)
	path := fs.String("out", "-", "CSV output path, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	w := out
	if *path != "-" {
		f, err := os.Create(*path)
		if err != nil {
			return errors.Wrapf(err, "create %s", *path)
		}
		defer f.Close()
		w = f
	}

	engine := settings.Resolve(ctx, nil, a.settings, a.log).Engine(a.inventory)
	_, err := labels.NewGenerator(engine, a.inventory, a.log).Generate(ctx, w, fs.Args())
	return err
}

func (a *app) resetRules(ctx context.Context) error {
	if a.settings == nil {
		return errors.New("settings backend is none, nothing to reset")
	}
	defaults := settings.Defaults()
	if err := a.settings.Save(ctx, &defaults); err != nil {
		return err
	}
	a.log.Infow("Pricing settings reset to defaults", "backend", a.cfg.Settings.Backend)
	return nil
}

// clearCache drops cached market quotes. Card ids limit it to those cards,
// otherwise the whole file is emptied.
func (a *app) clearCache(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cache-clear", flag.ContinueOnError)
	printing := fs.String("printing", a.cfg.Reprice.Printing, "printing of the quotes to drop")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.MarketPrice.CachePath == "" {
		return errors.New("no market price cache configured")
	}

	c, err := cache.New(a.cfg.MarketPrice.CachePath)
	if err != nil {
		return errors.Wrap(err, "open market price cache")
	}
	before := c.Len()
	if fs.NArg() == 0 {
		err = c.Clear()
	} else {
		for _, id := range fs.Args() {
			if err = c.Remove(cache.MarketPriceKey(marketprice.TCGSource, id, *printing)); err != nil {
				break
			}
		}
	}
	if err != nil {
		return errors.Wrap(err, "clear market price cache")
	}

	removed := before - c.Len()
	a.log.Infow("Market price cache cleared", "path", a.cfg.MarketPrice.CachePath, "removed", removed)
	_, err = fmt.Fprintf(out, "removed %d cached quotes\n", removed)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
