package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoinSentry/internal/fetcher"
	"CoinSentry/internal/model"
)

func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func directFetcher() *fetcher.Fetcher {
	return fetcher.New(nil, fetcher.Options{DirectTimeout: 2 * time.Second})
}

func TestBinanceFutures_MarketData(t *testing.T) {
	srv := serve(t, map[string]string{
		"/fapi/v1/ticker/24hr":                    `[{"symbol":"BTCUSDT","lastPrice":"50000.5","priceChangePercent":"1.25","quoteVolume":"1000000"}]`,
		"/fapi/v1/premiumIndex":                   `[{"symbol":"BTCUSDT","lastFundingRate":"0.0001"}]`,
		"/fapi/v1/openInterest":                   `{"symbol":"BTCUSDT","openInterest":"105"}`,
		"/futures/data/openInterestHist":          `[{"sumOpenInterest":"100"},{"sumOpenInterest":"102"}]`,
		"/futures/data/topLongShortPositionRatio": `[{"longShortRatio":"1.8"}]`,
		"/fapi/v1/klines":                         `[[1700000000000,"1","3","0.5","2","10",1700000059999,"0",1,"0","0","0"]]`,
	})
	bf := &BinanceFutures{BaseURL: srv.URL, Fetcher: directFetcher()}
	ctx := context.Background()

	tickers, err := bf.Tickers(ctx)
	require.NoError(t, err)
	require.Len(t, tickers, 1)
	assert.Equal(t, 50000.5, tickers[0].LastPrice)
	assert.Equal(t, 1.25, tickers[0].PriceChangePct)

	rates, err := bf.FundingRates(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, rates["BTCUSDT"], 1e-12)

	oi, err := bf.OpenInterest(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 105.0, oi)

	hist, err := bf.OpenInterestHist(ctx, "BTCUSDT", "5m", 7)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 102}, hist)

	ls, err := bf.TopLongShortRatio(ctx, "BTCUSDT", "30m")
	require.NoError(t, err)
	assert.Equal(t, 1.8, ls)

	bars, err := bf.Klines(ctx, "BTCUSDT", "1d", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, model.OHLCV{Time: time.UnixMilli(1700000000000), Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 10}, bars[0])
}

func TestBinanceSpot_USDTPrices(t *testing.T) {
	srv := serve(t, map[string]string{
		"/api/v3/ticker/price": `[{"symbol":"BTCUSDT","price":"50000"},{"symbol":"ETHBTC","price":"0.05"},{"symbol":"USDT","price":"1"}]`,
	})
	bs := &BinanceSpot{BaseURL: srv.URL, Fetcher: directFetcher()}
	prices, err := bs.USDTPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTC": 50000}, prices)
}

func TestHyperliquid_Snapshot(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		fmt.Fprint(w, `{"marginSummary":{"accountValue":"1234.5"},"assetPositions":[
			{"position":{"coin":"ETH","szi":"-2.5"}},{"position":{"coin":"SOL","szi":"0.0"}}]}`)
	}))
	defer srv.Close()

	h := &Hyperliquid{BaseURL: srv.URL, Wallet: "0xabc", Fetcher: directFetcher()}
	snap, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"clearinghouseState","user":"0xabc"}`, gotBody)
	assert.Equal(t, model.Holdings{HyperliquidCash: 1234.5}, snap.Holdings)
	assert.Equal(t, []model.Position{{Coin: "ETH", Size: -2.5}}, snap.Positions)
}

func TestGate_SignsRequest(t *testing.T) {
	var hdr http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr = r.Header.Clone()
		fmt.Fprint(w, `[{"currency":"GT","available":"3","locked":"1"},{"currency":"DOGE","available":"0","locked":"0"}]`)
	}))
	defer srv.Close()

	g := NewGate("key", "secret", directFetcher())
	g.BaseURL = srv.URL
	g.now = func() time.Time { return time.Unix(1700000000, 0) }

	snap, err := g.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Holdings{"GT": 4}, snap.Holdings)
	assert.Equal(t, "key", hdr.Get("KEY"))
	assert.Equal(t, "1700000000", hdr.Get("Timestamp"))
	assert.Equal(t, g.sign(http.MethodGet, "/api/v4/spot/accounts", "", nil, "1700000000"), hdr.Get("SIGN"))
	assert.Len(t, hdr.Get("SIGN"), 128)
}

func TestCoinalyze_OpenInterestAndFunding(t *testing.T) {
	var apiKey, symbols string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api_key")
		symbols = r.URL.Query().Get("symbols")
		switch r.URL.Path {
		case "/open-interest":
			fmt.Fprint(w, `[{"symbol":"BTCUSDT_PERP.A","value":1000.5}]`)
		case "/predicted-funding-rate":
			fmt.Fprint(w, `[{"symbol":"BTCUSDT_PERP.A","pf":0.0001}]`)
		case "/future-markets":
			fmt.Fprint(w, `[{"symbol":"BTCUSDT_PERP.A","base_asset":"BTC","symbol_on_exchange":"BTCUSDT","is_perpetual":true}]`)
		}
	}))
	defer srv.Close()

	c := NewCoinalyze(" k1 ", directFetcher())
	c.BaseURL = srv.URL
	ctx := context.Background()

	oi, err := c.OpenInterest(ctx, []string{"BTCUSDT_PERP.A", "ETHUSDT_PERP.A"})
	require.NoError(t, err)
	assert.Equal(t, []SymbolValue{{Symbol: "BTCUSDT_PERP.A", Value: 1000.5}}, oi)
	assert.Equal(t, "k1", apiKey)
	assert.Equal(t, "BTCUSDT_PERP.A,ETHUSDT_PERP.A", symbols)

	pf, err := c.PredictedFunding(ctx, []string{"BTCUSDT_PERP.A"})
	require.NoError(t, err)
	assert.Equal(t, 0.0001, pf[0].Value)

	markets, err := c.FutureMarkets(ctx)
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.True(t, markets[0].IsPerpetual)
	assert.Equal(t, "BTC", markets[0].BaseAsset)
}

func TestSentiment_FearGreed(t *testing.T) {
	srv := serve(t, map[string]string{"/": `{"data":[{"value":"72","value_classification":"Greed"}]}`})
	s := &Sentiment{URL: srv.URL + "/", Fetcher: directFetcher()}
	fg, err := s.FearGreed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FearGreed{Value: 72, Classification: "Greed"}, fg)
}

func TestCoinglass_Latest(t *testing.T) {
	srv := serve(t, map[string]string{
		"/index/bitcoin-sth-realized-price": `{"code":"0","data":[{"t":1,"v":61000.5},{"t":2,"v":"62000.25"}]}`,
		"/index/bitcoin-mvrv-z-score":       `{"code":"40001","msg":"bad key","data":[]}`,
	})
	c := &Coinglass{BaseURL: srv.URL, APIKey: "x", Fetcher: directFetcher()}

	sth, err := c.STHRealizedPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 62000.25, sth)

	_, err = c.MVRVZScore(context.Background())
	assert.Error(t, err)
}

func TestSeriesValue(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{`{"v":1.5}`, 1.5},
		{`[1700000000,2.5]`, 2.5},
		{`3.5`, 3.5},
		{`"4.5"`, 4.5},
	}
	for _, tt := range tests {
		got, err := seriesValue(json.RawMessage(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

type stubSource struct {
	name string
	snap model.SourceSnapshot
	err  error
}

func (s stubSource) Name() string { return s.name }
func (s stubSource) Snapshot(context.Context) (model.SourceSnapshot, error) {
	return s.snap, s.err
}

func TestCollectHoldings_FailureIsEmpty(t *testing.T) {
	c := NewCollector(
		stubSource{name: "gate", err: errors.New("boom")},
		stubSource{name: "binance", snap: model.SourceSnapshot{Holdings: model.Holdings{"BTC": 1}}},
	)
	out := c.CollectHoldings(context.Background())
	require.Len(t, out, 2)
	assert.Equal(t, "binance", out[0].Source)
	assert.Equal(t, 1.0, out[0].Holdings["BTC"])
	assert.Equal(t, "gate", out[1].Source)
	assert.Empty(t, out[1].Holdings)
}

func TestBinanceAccount_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/fapi/") {
			fmt.Fprint(w, `{"assets":[{"asset":"USDT","walletBalance":"100.5"}],
				"positions":[{"symbol":"BTCUSDT","positionAmt":"0.010"},{"symbol":"ETHUSDT","positionAmt":"0"}]}`)
			return
		}
		fmt.Fprint(w, `{"balances":[{"asset":"BTC","free":"0.5","locked":"0.1"},{"asset":"USDT","free":"10","locked":"0"},{"asset":"XRP","free":"0","locked":"0"}]}`)
	}))
	defer srv.Close()

	b := NewBinanceAccount("k", "s").WithBaseURLs(srv.URL, srv.URL)
	snap, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.6, snap.Holdings["BTC"], 1e-12)
	assert.InDelta(t, 110.5, snap.Holdings["USDT"], 1e-12)
	_, hasXRP := snap.Holdings["XRP"]
	assert.False(t, hasXRP)
	assert.Equal(t, []model.Position{{Coin: "BTC", Size: 0.01}}, snap.Positions)
}
