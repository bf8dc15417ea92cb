package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"CoinSentry/internal/fetcher"
	"CoinSentry/internal/model"
)

const (
	HyperliquidURL = "https://api.hyperliquid.xyz"
	// HyperliquidCash is the label of the account value in holdings.
	HyperliquidCash = "USDC (HL)"
)

// Hyperliquid reads the perp clearinghouse state of a wallet. The account
// value is the valued holding; open positions are exposure only.
type Hyperliquid struct {
	BaseURL string
	Wallet  string
	Fetcher Fetcher
}

func NewHyperliquid(wallet string, f Fetcher) *Hyperliquid {
	return &Hyperliquid{BaseURL: HyperliquidURL, Wallet: wallet, Fetcher: f}
}

func (h *Hyperliquid) Name() string { return "hyperliquid" }

func (h *Hyperliquid) Snapshot(ctx context.Context) (model.SourceSnapshot, error) {
	snap := model.SourceSnapshot{Source: h.Name(), Holdings: model.Holdings{}}

	body, err := json.Marshal(map[string]string{"type": "clearinghouseState", "user": h.Wallet})
	if err != nil {
		return snap, err
	}
	resp, err := h.Fetcher.Fetch(ctx, &fetcher.Request{
		Method: http.MethodPost,
		URL:    h.BaseURL + "/info",
		Body:   body,
	})
	if err != nil {
		return snap, fmt.Errorf("hyperliquid state: %w", err)
	}

	var raw struct {
		MarginSummary struct {
			AccountValue string `json:"accountValue"`
		} `json:"marginSummary"`
		AssetPositions []struct {
			Position struct {
				Coin string `json:"coin"`
				Szi  string `json:"szi"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	if err := resp.Decode(&raw); err != nil {
		return snap, err
	}

	if v := num(raw.MarginSummary.AccountValue); v > 0 {
		snap.Holdings[HyperliquidCash] = v
	}
	for _, ap := range raw.AssetPositions {
		if size := num(ap.Position.Szi); size != 0 {
			snap.Positions = append(snap.Positions, model.Position{Coin: ap.Position.Coin, Size: size})
		}
	}
	return snap, nil
}
