// Package marketdata loads historical candles from the Binance REST API.
// It is the data-loading collaborator of the optimizer: the core only
// consumes the validated series it returns.
package marketdata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"breakout-optimizer/internal/series"
)

// Client is a minimal Binance market data client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new market data client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetKlines fetches historical klines and returns them as a validated
// price series. Timestamps are the kline open times in milliseconds.
func (c *Client) GetKlines(symbol, interval string, limit int) (series.Series, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("%s/api/v3/klines?%s", c.baseURL, params.Encode())

	resp, err := c.httpClient.Get(endpoint)
	if err != nil {
		return series.Series{}, fmt.Errorf("error fetching klines: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return series.Series{}, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return series.Series{}, fmt.Errorf("API error: %s", string(body))
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return series.Series{}, fmt.Errorf("error parsing klines: %w", err)
	}

	bars := make([]series.Bar, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 6 {
			return series.Series{}, fmt.Errorf("kline %d has %d fields, want at least 6", i, len(raw))
		}
		openTime, ok := raw[0].(float64)
		if !ok {
			return series.Series{}, fmt.Errorf("kline %d has non-numeric open time", i)
		}
		bars[i] = series.Bar{
			Timestamp: int64(openTime),
			Open:      parseFloat(raw[1]),
			High:      parseFloat(raw[2]),
			Low:       parseFloat(raw[3]),
			Close:     parseFloat(raw[4]),
			Volume:    parseFloat(raw[5]),
		}
	}

	return series.New(symbol, bars)
}

// parseFloat handles Binance's string-encoded numeric fields
func parseFloat(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}
