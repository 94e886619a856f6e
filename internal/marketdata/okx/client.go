// Package okx fetches candlesticks from the OKX public REST API.
package okx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"ta-snapshot/internal/model"
)

const (
	DefaultBaseURL = "https://www.okx.com"
	candlesPath    = "/api/v5/market/candles"

	// OKX returns at most this many candles per request.
	MaxLimit = 300
)

// APIError is a non-"0" response code from OKX.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("okx api error %s: %s", e.Code, e.Msg)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is a read-only OKX market data client. It implements model.BarSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. Zero-valued fields fall back to defaults.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchBars returns up to limit candles for key in ascending time order.
// limit is clamped to [1, MaxLimit].
func (c *Client) FetchBars(ctx context.Context, key model.SeriesKey, limit int) ([]model.Bar, error) {
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}

	q := url.Values{}
	q.Set("instId", key.InstID)
	q.Set("bar", key.Bar)
	q.Set("limit", strconv.Itoa(limit))
	reqURL := c.baseURL + candlesPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("okx build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx get candles %s: %w", key, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("okx read body: %w", err)
	}
	slog.Debug("okx candles",
		slog.String("series", key.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)),
	)

	bars, err := ParseCandles(raw)
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("okx http %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return bars, nil
}

// ParseCandles decodes a candles response body:
//
//	{"code":"0","msg":"","data":[["ts","o","h","l","c","vol",...], ...]}
//
// Rows arrive newest first; the result is ascending by TS.
func ParseCandles(raw []byte) ([]model.Bar, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("okx: response is not valid JSON")
	}
	body := gjson.ParseBytes(raw)

	code := body.Get("code")
	if !code.Exists() {
		return nil, fmt.Errorf("okx: response has no code field")
	}
	if code.String() != "0" {
		return nil, &APIError{Code: code.String(), Msg: body.Get("msg").String()}
	}

	rows := body.Get("data").Array()
	bars := make([]model.Bar, len(rows))
	for i, row := range rows {
		b, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("okx row %d: %w", i, err)
		}
		bars[len(rows)-1-i] = b
	}
	return bars, nil
}

func parseRow(row gjson.Result) (model.Bar, error) {
	cols := row.Array()
	if len(cols) < 6 {
		return model.Bar{}, fmt.Errorf("expected at least 6 columns, got %d", len(cols))
	}
	ts, err := strconv.ParseInt(cols[0].String(), 10, 64)
	if err != nil {
		return model.Bar{}, fmt.Errorf("ts %q: %w", cols[0].String(), err)
	}

	var vals [5]float64
	for j := 0; j < 5; j++ {
		s := cols[j+1].String()
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("column %d %q: %w", j+1, s, err)
		}
		vals[j] = v
	}
	return model.Bar{
		TS:     ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
