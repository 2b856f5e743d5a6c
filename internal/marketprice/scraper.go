package marketprice

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/ratelimit"
)

const (
	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultSelector = "#used_price .price"
)

// PageScraper reads a price off a product page. URLTemplate may reference
// {id}, {name}, {set} and {number}.
type PageScraper struct {
	URLTemplate string
	Selector    string
	client      *http.Client
	limiter     *ratelimit.Limiter
}

func NewPageScraper(urlTemplate, selector string, ratePerMinute int) *PageScraper {
	if selector == "" {
		selector = defaultSelector
	}
	if ratePerMinute == 0 {
		ratePerMinute = 30
	}
	return &PageScraper{
		URLTemplate: urlTemplate,
		Selector:    selector,
		client:      &http.Client{Timeout: 20 * time.Second},
		limiter:     ratelimit.PerMinute(ratePerMinute),
	}
}

func (s *PageScraper) Name() string { return "page" }

func slug(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "-")
}

func (s *PageScraper) pageURL(card model.Card) string {
	return strings.NewReplacer(
		"{id}", card.ID,
		"{name}", slug(card.Name),
		"{set}", slug(card.SetName),
		"{number}", slug(card.Number),
	).Replace(s.URLTemplate)
}

func (s *PageScraper) MarketPrice(ctx context.Context, card model.Card, _ string) (float64, error) {
	if s.URLTemplate == "" {
		return 0, ErrNoPrice
	}
	if err := s.limiter.WaitContext(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL(card), nil)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetch product page")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Newf("product page returned %d", resp.StatusCode)
	}

	body, err := bodyReader(resp)
	if err != nil {
		return 0, errors.Wrap(err, "decode response encoding")
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return 0, errors.Wrap(err, "parse product page")
	}
	return extractPrice(doc, s.Selector)
}

func extractPrice(doc *goquery.Document, selector string) (float64, error) {
	text := strings.TrimSpace(doc.Find(selector).First().Text())
	if text == "" {
		return 0, ErrNoPrice
	}
	price, err := parsePrice(text)
	if err != nil {
		return 0, err
	}
	if price <= 0 {
		return 0, ErrNoPrice
	}
	return price, nil
}

// parsePrice accepts text like "$1,234.56" or "12.50 USD".
func parsePrice(text string) (float64, error) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, ErrNoPrice
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse price %q", text)
	}
	return v, nil
}
