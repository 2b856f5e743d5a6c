package marketprice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/guarzo/cardshop/internal/cache"
	"github.com/guarzo/cardshop/internal/logger"
	"github.com/guarzo/cardshop/internal/model"
	"github.com/guarzo/cardshop/internal/ratelimit"
)

const defaultBaseURL = "https://api.pokemontcg.io/v2"

// TCGSource names the pricing API in cache keys.
const TCGSource = "pokemontcg"

type TCGConfig struct {
	APIKey         string
	BaseURL        string
	RatePerMinute  int
	RequestTimeout time.Duration
	CacheTTL       time.Duration
}

// TCGClient reads TCGPlayer market quotes from the pokemontcg.io card API.
type TCGClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *ratelimit.Limiter
	cache   *cache.Cache // may be nil
	hot     *cache.Memory
	ttl     time.Duration
	log     *logger.Logger
}

func NewTCGClient(cfg TCGConfig, c *cache.Cache, log *logger.Logger) *TCGClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	rpm := cfg.RatePerMinute
	if rpm == 0 {
		rpm = 60
	}
	return &TCGClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: ratelimit.PerMinute(rpm),
		cache:   c,
		hot:     cache.NewMemory(cfg.CacheTTL),
		ttl:     cfg.CacheTTL,
		log:     logger.OrNop(log),
	}
}

func (c *TCGClient) Name() string { return TCGSource }

func (c *TCGClient) CacheStats() cache.MemoryStats { return c.hot.Stats() }

type cardResponse struct {
	Data struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Number string `json:"number"`
		Rarity string `json:"rarity"`
		Set    struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"set"`
		TCG *struct {
			URL     string                          `json:"url"`
			Updated string                          `json:"updatedAt"`
			Prices  map[string]model.TCGPlayerPrice `json:"prices"`
		} `json:"tcgplayer"`
	} `json:"data"`
}

// Card fetches a card with its TCGPlayer price block.
func (c *TCGClient) Card(ctx context.Context, cardID string) (model.Card, error) {
	if cardID == "" {
		return model.Card{}, errors.New("card id required")
	}
	if err := c.limiter.WaitContext(ctx); err != nil {
		return model.Card{}, err
	}

	u := fmt.Sprintf("%s/cards/%s", c.baseURL, url.PathEscape(cardID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Card{}, errors.Wrap(err, "build request")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("User-Agent", "cardshop/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Card{}, errors.Wrap(err, "pokemontcg request")
	}
	defer resp.Body.Close()

	body, err := bodyReader(resp)
	if err != nil {
		return model.Card{}, errors.Wrap(err, "decode response encoding")
	}
	defer body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(body, 512))
		return model.Card{}, errors.Newf("pokemontcg %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out cardResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return model.Card{}, errors.Wrap(err, "parse pokemontcg response")
	}

	card := model.Card{
		ID:      out.Data.ID,
		Name:    out.Data.Name,
		Number:  out.Data.Number,
		Rarity:  out.Data.Rarity,
		SetID:   out.Data.Set.ID,
		SetName: out.Data.Set.Name,
	}
	if out.Data.TCG != nil {
		card.TCGPlayer = &model.TCGPlayerBlock{
			URL:     out.Data.TCG.URL,
			Updated: out.Data.TCG.Updated,
			Prices:  out.Data.TCG.Prices,
		}
	}
	return card, nil
}

// MarketPrice returns the cached quote when fresh, otherwise asks the API.
// Quotes are kept in memory for the client's lifetime and in the file cache
// across runs.
func (c *TCGClient) MarketPrice(ctx context.Context, card model.Card, printing string) (float64, error) {
	key := cache.MarketPriceKey(c.Name(), card.ID, printing)
	if price, ok := c.hot.Get(key); ok {
		return price, nil
	}
	if c.cache != nil {
		var price float64
		if found, _ := c.cache.Get(key, &price); found {
			c.hot.Set(key, price)
			return price, nil
		}
	}

	fetched, err := c.Card(ctx, card.ID)
	if err != nil {
		return 0, err
	}
	price, ok := fetched.MarketPrice(printing)
	if !ok {
		return 0, ErrNoPrice
	}

	c.hot.Set(key, price)
	if c.cache != nil {
		if err := c.cache.Put(key, price, c.ttl); err != nil {
			c.log.Warnw("failed to cache market price", "card", card.ID, "error", err)
		}
	}
	return price, nil
}
