package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const (
	FearGreedURL = "https://api.alternative.me/fng/"
	CoinglassURL = "https://open-api-v4.coinglass.com/api"
)

// FearGreed is the latest fear and greed index.
type FearGreed struct {
	Value          int
	Classification string
}

// Sentiment reads the alternative.me fear and greed index.
type Sentiment struct {
	URL     string
	Fetcher Fetcher
}

func NewSentiment(f Fetcher) *Sentiment {
	return &Sentiment{URL: FearGreedURL, Fetcher: f}
}

func (s *Sentiment) FearGreed(ctx context.Context) (FearGreed, error) {
	var raw struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
		} `json:"data"`
	}
	if err := getJSON(ctx, s.Fetcher, s.URL, nil, &raw); err != nil {
		return FearGreed{}, fmt.Errorf("fear and greed: %w", err)
	}
	if len(raw.Data) == 0 {
		return FearGreed{}, errors.New("fear and greed: no data")
	}
	v, _ := strconv.Atoi(raw.Data[0].Value)
	return FearGreed{Value: v, Classification: raw.Data[0].Classification}, nil
}

// Coinglass reads on-chain index series.
type Coinglass struct {
	BaseURL string
	APIKey  string
	Fetcher Fetcher
}

func NewCoinglass(apiKey string, f Fetcher) *Coinglass {
	return &Coinglass{BaseURL: CoinglassURL, APIKey: apiKey, Fetcher: f}
}

// STHRealizedPrice is the short term holder realized price.
func (c *Coinglass) STHRealizedPrice(ctx context.Context) (float64, error) {
	return c.latest(ctx, "/index/bitcoin-sth-realized-price")
}

// MVRVZScore is the latest MVRV Z-score.
func (c *Coinglass) MVRVZScore(ctx context.Context) (float64, error) {
	return c.latest(ctx, "/index/bitcoin-mvrv-z-score")
}

func (c *Coinglass) latest(ctx context.Context, path string) (float64, error) {
	h := http.Header{}
	h.Set("CG-API-KEY", c.APIKey)
	h.Set("Accept", "application/json")

	var raw struct {
		Code string            `json:"code"`
		Msg  string            `json:"msg"`
		Data []json.RawMessage `json:"data"`
	}
	if err := getJSON(ctx, c.Fetcher, c.BaseURL+path, h, &raw); err != nil {
		return 0, fmt.Errorf("coinglass %s: %w", path, err)
	}
	if raw.Code != "0" {
		return 0, fmt.Errorf("coinglass %s: code %s: %s", path, raw.Code, raw.Msg)
	}
	if len(raw.Data) == 0 {
		return 0, fmt.Errorf("coinglass %s: empty series", path)
	}
	return seriesValue(raw.Data[len(raw.Data)-1])
}

// seriesValue reads a series point given as {"v": x}, [t, x] or x, where x
// may be a number or a numeric string.
func seriesValue(raw json.RawMessage) (float64, error) {
	var obj struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.V != nil {
		return scalar(obj.V)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		if len(arr) < 2 {
			return 0, errors.New("series point: short pair")
		}
		return scalar(arr[1])
	}
	return scalar(raw)
}

func scalar(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("series point: %w", err)
	}
	return strconv.ParseFloat(s, 64)
}
