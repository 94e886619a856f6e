package okx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ta-snapshot/internal/model"
)

const candlesBody = `{"code":"0","msg":"","data":[
	["1700007200000","102","104","101","103","12.5","0","0","1"],
	["1700003600000","101","103","100","102","10","0","0","1"],
	["1700000000000","100","102","99","101","8","0","0","1"]
]}`

func TestFetchBars_AscendingAndQuery(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/market/candles", r.URL.Path)
		gotQuery = map[string]string{
			"instId": r.URL.Query().Get("instId"),
			"bar":    r.URL.Query().Get("bar"),
			"limit":  r.URL.Query().Get("limit"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(candlesBody))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"})
	bars, err := c.FetchBars(context.Background(), model.SeriesKey{InstID: "BTC-USDT-SWAP", Bar: "1H"}, 3)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"instId": "BTC-USDT-SWAP", "bar": "1H", "limit": "3"}, gotQuery)
	require.Len(t, bars, 3)
	assert.True(t, model.IsAscending(bars))
	assert.Equal(t, model.Bar{TS: 1700000000000, Open: 100, High: 102, Low: 99, Close: 101, Volume: 8}, bars[0])
	assert.Equal(t, 103.0, bars[2].Close)
	assert.Equal(t, 12.5, bars[2].Volume)
}

func TestFetchBars_ClampsLimit(t *testing.T) {
	var limit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer srv.Close()

	bars, err := NewClient(Config{BaseURL: srv.URL}).FetchBars(context.Background(), model.SeriesKey{InstID: "X", Bar: "1m"}, 5000)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, "300", limit)
}

func TestFetchBars_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"51001","msg":"Instrument ID does not exist","data":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).FetchBars(context.Background(), model.SeriesKey{InstID: "NOPE", Bar: "1H"}, 10)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "51001", apiErr.Code)
	assert.Equal(t, "Instrument ID does not exist", apiErr.Msg)
}

func TestFetchBars_HTTPErrorWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).FetchBars(context.Background(), model.SeriesKey{InstID: "X", Bar: "1H"}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "okx http 502")
}

func TestFetchBars_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candlesBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(Config{BaseURL: srv.URL}).FetchBars(ctx, model.SeriesKey{InstID: "X", Bar: "1H"}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCandles_BadRows(t *testing.T) {
	cases := map[string]string{
		"short row":  `{"code":"0","data":[["1700000000000","1","2","0.5","1.5"]]}`,
		"bad number": `{"code":"0","data":[["1700000000000","1","2","x","1.5","3"]]}`,
		"bad ts":     `{"code":"0","data":[["soon","1","2","0.5","1.5","3"]]}`,
		"no code":    `{"data":[]}`,
		"not json":   `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCandles([]byte(body))
			assert.Error(t, err)
		})
	}
}
