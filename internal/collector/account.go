package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"CoinSentry/internal/model"
)

// BinanceAccount reads spot balances and USDⓈ-M futures wallet balances and
// positions through the signed API. These calls never use public proxies.
type BinanceAccount struct {
	spot *binance.Client
	fut  *futures.Client
}

func NewBinanceAccount(apiKey, apiSecret string) *BinanceAccount {
	return &BinanceAccount{
		spot: binance.NewClient(apiKey, apiSecret),
		fut:  futures.NewClient(apiKey, apiSecret),
	}
}

// WithBaseURLs points both clients elsewhere, for testnet or tests.
func (b *BinanceAccount) WithBaseURLs(spotURL, futuresURL string) *BinanceAccount {
	b.spot.BaseURL = spotURL
	b.fut.BaseURL = futuresURL
	return b
}

func (b *BinanceAccount) Name() string { return "binance" }

func (b *BinanceAccount) Snapshot(ctx context.Context) (model.SourceSnapshot, error) {
	snap := model.SourceSnapshot{Source: b.Name(), Holdings: model.Holdings{}}
	amounts := make(map[string]decimal.Decimal)

	acct, err := b.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return snap, fmt.Errorf("binance spot account: %w", err)
	}
	for _, bal := range acct.Balances {
		total := decimal.RequireFromString(orZero(bal.Free)).Add(decimal.RequireFromString(orZero(bal.Locked)))
		if total.IsPositive() {
			amounts[bal.Asset] = amounts[bal.Asset].Add(total)
		}
	}

	fa, err := b.fut.NewGetAccountService().Do(ctx)
	if err != nil {
		return snap, fmt.Errorf("binance futures account: %w", err)
	}
	for _, a := range fa.Assets {
		wallet := decimal.RequireFromString(orZero(a.WalletBalance))
		if wallet.IsPositive() {
			amounts[a.Asset] = amounts[a.Asset].Add(wallet)
		}
	}
	for _, p := range fa.Positions {
		size := decimal.RequireFromString(orZero(p.PositionAmt))
		if size.IsZero() {
			continue
		}
		snap.Positions = append(snap.Positions, model.Position{
			Coin: strings.TrimSuffix(p.Symbol, "USDT"),
			Size: size.InexactFloat64(),
		})
	}

	for asset, amt := range amounts {
		snap.Holdings[asset] = amt.InexactFloat64()
	}
	return snap, nil
}

func orZero(s string) string {
	if _, err := decimal.NewFromString(s); err != nil {
		return "0"
	}
	return s
}
