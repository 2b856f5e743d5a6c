package marketprice

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/model"
)

// ErrNoPrice means the source has no usable quote for the card.
var ErrNoPrice = errors.New("no market price available")

// Provider looks up a card's current market price.
type Provider interface {
	Name() string
	MarketPrice(ctx context.Context, card model.Card, printing string) (float64, error)
}

// Chain asks each provider in order and returns the first positive price.
type Chain []Provider

func (c Chain) Name() string { return "chain" }

func (c Chain) MarketPrice(ctx context.Context, card model.Card, printing string) (float64, error) {
	var failures []string
	for _, p := range c {
		price, err := p.MarketPrice(ctx, card, printing)
		if err == nil && price > 0 {
			return price, nil
		}
		if err == nil {
			err = ErrNoPrice
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		failures = append(failures, p.Name()+": "+err.Error())
	}
	if len(failures) == 0 {
		return 0, ErrNoPrice
	}
	return 0, errors.Wrapf(ErrNoPrice, "%s", strings.Join(failures, "; "))
}

// bodyReader undoes gzip or brotli content encoding.
func bodyReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return resp.Body, nil
	}
}
