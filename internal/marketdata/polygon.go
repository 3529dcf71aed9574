package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"goldsignal/internal/models"
)

// Polygon serves quotes from the polygon.io aggregates API. The gold spot
// pair lives under the forex feed as ticker C:XAUUSD.
type Polygon struct {
	host       string
	apiKey     string
	ticker     string
	httpClient *http.Client
}

type polygonAPIError struct {
	Status int
	Body   string
}

func (e *polygonAPIError) Error() string {
	return fmt.Sprintf("polygon API error (%d): %s", e.Status, e.Body)
}

func NewPolygon(httpClient *http.Client, host, apiKey, ticker string) *Polygon {
	if host == "" {
		host = "https://api.polygon.io"
	}
	host = strings.TrimRight(host, "/")
	if ticker == "" {
		ticker = "C:XAUUSD"
	}
	return &Polygon{
		host:       host,
		apiKey:     apiKey,
		ticker:     ticker,
		httpClient: httpClient,
	}
}

func (p *Polygon) Name() string { return "polygon" }

type polygonAggs struct {
	Ticker  string `json:"ticker"`
	Status  string `json:"status"`
	Results []struct {
		T int64   `json:"t"`
		O float64 `json:"o"`
		H float64 `json:"h"`
		L float64 `json:"l"`
		C float64 `json:"c"`
		V float64 `json:"v"`
	} `json:"results"`
}

func (p *Polygon) doRequest(ctx context.Context, path string, query url.Values) (*polygonAggs, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", p.apiKey)
	fullURL := p.host + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &polygonAPIError{Status: resp.StatusCode, Body: string(body)}
	}

	var aggs polygonAggs
	if err := json.Unmarshal(body, &aggs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &aggs, nil
}

// CurrentPrice returns the close of the previous aggregate bar. The free
// forex feed has no last-trade endpoint, so prev-close is the freshest
// quote available without a paid tier.
func (p *Polygon) CurrentPrice(ctx context.Context) (float64, error) {
	path := fmt.Sprintf("/v2/aggs/ticker/%s/prev", url.PathEscape(p.ticker))
	aggs, err := p.doRequest(ctx, path, url.Values{"adjusted": {"true"}})
	if err != nil {
		return 0, err
	}
	if len(aggs.Results) == 0 {
		return 0, fmt.Errorf("polygon: no previous bar for %s", p.ticker)
	}
	return aggs.Results[len(aggs.Results)-1].C, nil
}

func (p *Polygon) HourlyBars(ctx context.Context, days int) ([]models.Bar, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/hour/%d/%d",
		url.PathEscape(p.ticker), from.UnixMilli(), to.UnixMilli())
	aggs, err := p.doRequest(ctx, path, url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"50000"},
	})
	if err != nil {
		return nil, err
	}
	if len(aggs.Results) == 0 {
		return nil, fmt.Errorf("polygon: no hourly bars for %s", p.ticker)
	}

	bars := make([]models.Bar, 0, len(aggs.Results))
	for _, r := range aggs.Results {
		bars = append(bars, models.Bar{
			Time:   time.UnixMilli(r.T).UTC(),
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: r.V,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
