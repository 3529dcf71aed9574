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

// Yahoo serves quotes from the public Yahoo Finance chart API. Used as the
// keyless fallback; GC=F is the COMEX gold futures front contract.
type Yahoo struct {
	host       string
	symbol     string
	httpClient *http.Client
}

func NewYahoo(httpClient *http.Client, host, symbol string) *Yahoo {
	if host == "" {
		host = "https://query1.finance.yahoo.com"
	}
	host = strings.TrimRight(host, "/")
	if symbol == "" {
		symbol = "GC=F"
	}
	return &Yahoo{
		host:       host,
		symbol:     symbol,
		httpClient: httpClient,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// yahooChart is the response structure of the v8 chart API. OHLCV arrays
// carry nulls for holiday bars, hence interface{} elements.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (y *Yahoo) fetchChart(ctx context.Context, interval, rng string) ([]models.Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.host, url.PathEscape(y.symbol), interval, rng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("yahoo: no data returned")
	}
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no quote data returned")
	}

	quote := result.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // null bars (holidays, halted sessions)
		}
		bars = append(bars, models.Bar{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: toFloat(quote.Volume[i]),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// CurrentPrice is the close of the latest 5-minute bar of the current
// session.
func (y *Yahoo) CurrentPrice(ctx context.Context) (float64, error) {
	bars, err := y.fetchChart(ctx, "5m", "1d")
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("yahoo: no price data")
	}
	return bars[len(bars)-1].Close, nil
}

func (y *Yahoo) HourlyBars(ctx context.Context, days int) ([]models.Bar, error) {
	bars, err := y.fetchChart(ctx, "1h", hourlyRange(days))
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	for i, b := range bars {
		if !b.Time.Before(cutoff) {
			return bars[i:], nil
		}
	}
	return nil, fmt.Errorf("yahoo: no hourly bars in the last %d days", days)
}

// hourlyRange maps a day count onto the chart API's fixed range values.
// Hourly data is capped at two years.
func hourlyRange(days int) string {
	switch {
	case days <= 25:
		return "1mo"
	case days <= 85:
		return "3mo"
	case days <= 175:
		return "6mo"
	case days <= 360:
		return "1y"
	default:
		return "2y"
	}
}
