package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const CoinalyzeURL = "https://api.coinalyze.net/v1"

// CoinalyzeMarket is one futures market listed by Coinalyze.
type CoinalyzeMarket struct {
	Symbol           string `json:"symbol"`
	Exchange         string `json:"exchange"`
	BaseAsset        string `json:"base_asset"`
	SymbolOnExchange string `json:"symbol_on_exchange"`
	IsPerpetual      bool   `json:"is_perpetual"`
}

// SymbolValue is a per-symbol figure (OI in base units, or predicted funding).
type SymbolValue struct {
	Symbol string
	Value  float64
}

// Coinalyze reads aggregated derivatives data.
type Coinalyze struct {
	BaseURL string
	APIKey  string
	Fetcher Fetcher
}

func NewCoinalyze(apiKey string, f Fetcher) *Coinalyze {
	return &Coinalyze{BaseURL: CoinalyzeURL, APIKey: strings.TrimSpace(apiKey), Fetcher: f}
}

func (c *Coinalyze) header() http.Header {
	h := http.Header{}
	h.Set("api_key", c.APIKey)
	h.Set("Accept", "application/json")
	return h
}

// FutureMarkets lists all supported futures markets.
func (c *Coinalyze) FutureMarkets(ctx context.Context) ([]CoinalyzeMarket, error) {
	var out []CoinalyzeMarket
	if err := getJSON(ctx, c.Fetcher, c.BaseURL+"/future-markets", c.header(), &out); err != nil {
		return nil, fmt.Errorf("coinalyze markets: %w", err)
	}
	return out, nil
}

// OpenInterest returns current OI for up to 100 symbols.
func (c *Coinalyze) OpenInterest(ctx context.Context, symbols []string) ([]SymbolValue, error) {
	var raw []struct {
		Symbol string  `json:"symbol"`
		Value  float64 `json:"value"`
	}
	u := c.BaseURL + "/open-interest?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	if err := getJSON(ctx, c.Fetcher, u, c.header(), &raw); err != nil {
		return nil, fmt.Errorf("coinalyze open interest: %w", err)
	}
	out := make([]SymbolValue, len(raw))
	for i, r := range raw {
		out[i] = SymbolValue{Symbol: r.Symbol, Value: r.Value}
	}
	return out, nil
}

// PredictedFunding returns predicted funding rates (fraction per 8h).
func (c *Coinalyze) PredictedFunding(ctx context.Context, symbols []string) ([]SymbolValue, error) {
	var raw []struct {
		Symbol string  `json:"symbol"`
		PF     float64 `json:"pf"`
	}
	u := c.BaseURL + "/predicted-funding-rate?symbols=" + url.QueryEscape(strings.Join(symbols, ","))
	if err := getJSON(ctx, c.Fetcher, u, c.header(), &raw); err != nil {
		return nil, fmt.Errorf("coinalyze funding: %w", err)
	}
	out := make([]SymbolValue, len(raw))
	for i, r := range raw {
		out[i] = SymbolValue{Symbol: r.Symbol, Value: r.PF}
	}
	return out, nil
}
