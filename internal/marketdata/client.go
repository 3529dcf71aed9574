package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/config"
	"goldsignal/internal/models"
)

// Client fronts the configured sources with primary/fallback failover and a
// short TTL cache, so one 5-minute tick costs at most one upstream call per
// kind of data. Total failure surfaces as ErrUnavailable, which the tick
// loop treats as "skip and retry".
type Client struct {
	Primary  Source
	Fallback Source
	CacheTTL time.Duration
	Logger   *zap.Logger

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	priceAt time.Time
	price   decimal.Decimal
	barsAt  map[int]time.Time
	bars    map[int][]models.Bar
}

// NewClient wires sources from config: Polygon primary when an API key is
// configured, Yahoo as the keyless fallback (or primary without a key).
func NewClient(cfg config.MarketDataConfig, logger *zap.Logger) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	yahoo := NewYahoo(httpClient, cfg.Yahoo.BaseURL, cfg.Yahoo.Symbol)

	c := &Client{
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
	}
	if cfg.Polygon.APIKey != "" {
		c.Primary = NewPolygon(httpClient, cfg.Polygon.BaseURL, cfg.Polygon.APIKey, cfg.Polygon.Symbol)
		c.Fallback = yahoo
	} else {
		c.Primary = yahoo
	}
	return c
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CurrentPrice returns the live gold price as a decimal.
func (c *Client) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.priceAt.IsZero() && now.Sub(c.priceAt) < c.CacheTTL {
		return c.price, nil
	}

	p, err := c.fetchPrice(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	c.price = decimal.NewFromFloat(p)
	c.priceAt = now
	return c.price, nil
}

func (c *Client) fetchPrice(ctx context.Context) (float64, error) {
	p, perr := c.Primary.CurrentPrice(ctx)
	if perr == nil {
		return p, nil
	}
	if c.Fallback == nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Primary.Name(), perr)
	}
	c.Logger.Warn("primary price source failed, trying fallback",
		zap.String("source", c.Primary.Name()),
		zap.Error(perr))
	p, ferr := c.Fallback.CurrentPrice(ctx)
	if ferr == nil {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %s: %v; %s: %v",
		ErrUnavailable, c.Primary.Name(), perr, c.Fallback.Name(), ferr)
}

// HourlyBars returns the last days of hourly history, oldest first.
func (c *Client) HourlyBars(ctx context.Context, days int) ([]models.Bar, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.barsAt[days]; ok && now.Sub(at) < c.CacheTTL {
		return c.bars[days], nil
	}

	bars, err := c.fetchBars(ctx, days)
	if err != nil {
		return nil, err
	}
	if c.bars == nil {
		c.bars = make(map[int][]models.Bar)
		c.barsAt = make(map[int]time.Time)
	}
	c.bars[days] = bars
	c.barsAt[days] = now
	return bars, nil
}

func (c *Client) fetchBars(ctx context.Context, days int) ([]models.Bar, error) {
	bars, perr := c.Primary.HourlyBars(ctx, days)
	if perr == nil {
		return bars, nil
	}
	if c.Fallback == nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Primary.Name(), perr)
	}
	c.Logger.Warn("primary bar source failed, trying fallback",
		zap.String("source", c.Primary.Name()),
		zap.Error(perr))
	bars, ferr := c.Fallback.HourlyBars(ctx, days)
	if ferr == nil {
		return bars, nil
	}
	return nil, fmt.Errorf("%w: %s: %v; %s: %v",
		ErrUnavailable, c.Primary.Name(), perr, c.Fallback.Name(), ferr)
}
