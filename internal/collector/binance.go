package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"CoinSentry/internal/model"
)

const (
	BinanceFuturesURL = "https://fapi.binance.com"
	BinanceSpotURL    = "https://api.binance.com"
)

// BinanceFutures reads public USDⓈ-M futures market data.
type BinanceFutures struct {
	BaseURL string
	Fetcher Fetcher
}

func NewBinanceFutures(f Fetcher) *BinanceFutures {
	return &BinanceFutures{BaseURL: BinanceFuturesURL, Fetcher: f}
}

// Tickers returns the 24h tickers of all perpetuals.
func (b *BinanceFutures) Tickers(ctx context.Context) ([]model.Ticker, error) {
	var raw []struct {
		Symbol             string `json:"symbol"`
		LastPrice          string `json:"lastPrice"`
		PriceChangePercent string `json:"priceChangePercent"`
		QuoteVolume        string `json:"quoteVolume"`
	}
	if err := getJSON(ctx, b.Fetcher, b.BaseURL+"/fapi/v1/ticker/24hr", nil, &raw); err != nil {
		return nil, fmt.Errorf("futures tickers: %w", err)
	}
	out := make([]model.Ticker, 0, len(raw))
	for _, r := range raw {
		out = append(out, model.Ticker{
			Symbol:         r.Symbol,
			LastPrice:      num(r.LastPrice),
			PriceChangePct: num(r.PriceChangePercent),
			QuoteVolume:    num(r.QuoteVolume),
		})
	}
	return out, nil
}

// FundingRates returns the last funding rate per symbol, in percent.
func (b *BinanceFutures) FundingRates(ctx context.Context) (map[string]float64, error) {
	var raw []struct {
		Symbol          string `json:"symbol"`
		LastFundingRate string `json:"lastFundingRate"`
	}
	if err := getJSON(ctx, b.Fetcher, b.BaseURL+"/fapi/v1/premiumIndex", nil, &raw); err != nil {
		return nil, fmt.Errorf("premium index: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for _, r := range raw {
		out[r.Symbol] = num(r.LastFundingRate) * 100
	}
	return out, nil
}

// OpenInterest returns the current open interest in contracts.
func (b *BinanceFutures) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	var raw struct {
		OpenInterest string `json:"openInterest"`
	}
	u := fmt.Sprintf("%s/fapi/v1/openInterest?symbol=%s", b.BaseURL, url.QueryEscape(symbol))
	if err := getJSON(ctx, b.Fetcher, u, nil, &raw); err != nil {
		return 0, fmt.Errorf("open interest %s: %w", symbol, err)
	}
	if raw.OpenInterest == "" {
		return 0, fmt.Errorf("open interest %s: empty answer", symbol)
	}
	return num(raw.OpenInterest), nil
}

// OpenInterestHist returns sumOpenInterest values, oldest first.
func (b *BinanceFutures) OpenInterestHist(ctx context.Context, symbol, period string, limit int) ([]float64, error) {
	var raw []struct {
		SumOpenInterest string `json:"sumOpenInterest"`
	}
	u := fmt.Sprintf("%s/futures/data/openInterestHist?symbol=%s&period=%s&limit=%d",
		b.BaseURL, url.QueryEscape(symbol), period, limit)
	if err := getJSON(ctx, b.Fetcher, u, nil, &raw); err != nil {
		return nil, fmt.Errorf("open interest history %s: %w", symbol, err)
	}
	out := make([]float64, len(raw))
	for i, r := range raw {
		out[i] = num(r.SumOpenInterest)
	}
	return out, nil
}

// TopLongShortRatio returns the latest top trader long/short position ratio.
func (b *BinanceFutures) TopLongShortRatio(ctx context.Context, symbol, period string) (float64, error) {
	var raw []struct {
		LongShortRatio string `json:"longShortRatio"`
	}
	u := fmt.Sprintf("%s/futures/data/topLongShortPositionRatio?symbol=%s&period=%s&limit=1",
		b.BaseURL, url.QueryEscape(symbol), period)
	if err := getJSON(ctx, b.Fetcher, u, nil, &raw); err != nil {
		return 0, fmt.Errorf("long short ratio %s: %w", symbol, err)
	}
	if len(raw) == 0 {
		return 0, fmt.Errorf("long short ratio %s: empty answer", symbol)
	}
	return num(raw[0].LongShortRatio), nil
}

// Klines returns futures candles.
func (b *BinanceFutures) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	return klines(ctx, b.Fetcher, b.BaseURL+"/fapi/v1/klines", symbol, interval, limit)
}

// BinanceSpot reads public spot market data.
type BinanceSpot struct {
	BaseURL string
	Fetcher Fetcher
}

func NewBinanceSpot(f Fetcher) *BinanceSpot {
	return &BinanceSpot{BaseURL: BinanceSpotURL, Fetcher: f}
}

// USDTPrices returns the last price of every USDT pair keyed by base asset.
func (b *BinanceSpot) USDTPrices(ctx context.Context) (map[string]float64, error) {
	var raw []struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := getJSON(ctx, b.Fetcher, b.BaseURL+"/api/v3/ticker/price", nil, &raw); err != nil {
		return nil, fmt.Errorf("spot prices: %w", err)
	}
	out := make(map[string]float64)
	for _, r := range raw {
		if base, ok := strings.CutSuffix(r.Symbol, "USDT"); ok && base != "" {
			out[base] = num(r.Price)
		}
	}
	return out, nil
}

// Klines returns spot candles.
func (b *BinanceSpot) Klines(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	return klines(ctx, b.Fetcher, b.BaseURL+"/api/v3/klines", symbol, interval, limit)
}

// klines decodes Binance's array-of-arrays candle format:
// [openTime, open, high, low, close, volume, ...].
func klines(ctx context.Context, f Fetcher, endpoint, symbol, interval string, limit int) ([]model.OHLCV, error) {
	u := fmt.Sprintf("%s?symbol=%s&interval=%s&limit=%d", endpoint, url.QueryEscape(symbol), interval, limit)
	var raw [][]json.RawMessage
	if err := getJSON(ctx, f, u, nil, &raw); err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	bars := make([]model.OHLCV, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			return nil, errors.New("klines: short row")
		}
		var openTime int64
		if err := json.Unmarshal(k[0], &openTime); err != nil {
			return nil, fmt.Errorf("klines: open time: %w", err)
		}
		vals := make([]float64, 5)
		for i := range vals {
			var s string
			if err := json.Unmarshal(k[i+1], &s); err != nil {
				return nil, fmt.Errorf("klines: field %d: %w", i+1, err)
			}
			vals[i] = num(s)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.UnixMilli(openTime),
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return bars, nil
}
