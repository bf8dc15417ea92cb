package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"CoinSentry/internal/calculator"
	"CoinSentry/internal/collector"
	"CoinSentry/internal/model"
	"CoinSentry/internal/notifier"
)

const (
	coinalyzeBatch   = 100
	altUniverse      = 100
	fundingPerps     = 10
	hotAltCandidates = 10
	hotAltRatio      = 0.9
	dailyBars        = 250
	rsiPeriod        = 14
	// Funding is paid three times a day.
	fundingPerYear = 3 * 365
)

var majors = map[string]bool{"BTCUSDT": true, "ETHUSDT": true, "USDCUSDT": true, "FDUSDUSDT": true}

// DailyMarket is the Binance data used by the dashboard.
type DailyMarket interface {
	Tickers(ctx context.Context) ([]model.Ticker, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error)
}

// DerivativesSource serves aggregated open interest and funding.
type DerivativesSource interface {
	FutureMarkets(ctx context.Context) ([]collector.CoinalyzeMarket, error)
	OpenInterest(ctx context.Context, symbols []string) ([]collector.SymbolValue, error)
	PredictedFunding(ctx context.Context, symbols []string) ([]collector.SymbolValue, error)
}

// FearGreedSource serves the fear and greed index.
type FearGreedSource interface {
	FearGreed(ctx context.Context) (collector.FearGreed, error)
}

// OnChainSource serves on-chain valuation indexes.
type OnChainSource interface {
	STHRealizedPrice(ctx context.Context) (float64, error)
	MVRVZScore(ctx context.Context) (float64, error)
}

// DashboardScanner builds the daily BTC dashboard. Nil sources are skipped
// and leave their indicators at zero.
type DashboardScanner struct {
	Market      DailyMarket
	Derivatives DerivativesSource
	Sentiment   FearGreedSource
	OnChain     OnChainSource
	Discord     EmbedSender
	// BatchPause spaces out derivatives requests.
	BatchPause time.Duration

	now func() time.Time
}

// Run builds the dashboard and posts it to Discord when configured.
func (s *DashboardScanner) Run(ctx context.Context) (ind *model.DashboardIndicators, err error) {
	start := time.Now()
	defer func() { observe("dashboard", start, err) }()

	ind = s.Build(ctx)
	if s.Discord == nil {
		log.Info().Msg("discord not configured, dashboard not sent")
		return ind, nil
	}
	if err := s.Discord.SendEmbed(ctx, notifier.FormatDashboard(ind, s.clock())); err != nil {
		return ind, fmt.Errorf("send dashboard: %w", err)
	}
	log.Info().Bool("overheated", ind.Overheated()).Msg("dashboard sent")
	return ind, nil
}

// Build gathers every indicator. Failing inputs are logged and left at zero.
func (s *DashboardScanner) Build(ctx context.Context) *model.DashboardIndicators {
	ind := &model.DashboardIndicators{}

	tickers, err := s.Market.Tickers(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("dashboard tickers unavailable")
	}
	tickers = lo.Filter(tickers, func(t model.Ticker, _ int) bool { return strings.HasSuffix(t.Symbol, "USDT") })
	sort.SliceStable(tickers, func(i, j int) bool { return tickers[i].QuoteVolume > tickers[j].QuoteVolume })
	bySymbol := lo.KeyBy(tickers, func(t model.Ticker) string { return t.Symbol })

	btc := bySymbol["BTCUSDT"]
	ind.BTCPrice = btc.LastPrice
	ind.HotAlts = hotAlts(tickers, btc.QuoteVolume)
	s.technicals(ctx, ind)

	if s.Derivatives != nil {
		s.openInterest(ctx, ind, bySymbol)
	}

	if s.Sentiment != nil {
		if fg, err := s.Sentiment.FearGreed(ctx); err != nil {
			log.Warn().Err(err).Msg("fear and greed unavailable")
		} else {
			ind.FearGreed, ind.FearGreedLabel = fg.Value, fg.Classification
		}
	}

	if s.OnChain != nil {
		if v, err := s.OnChain.STHRealizedPrice(ctx); err != nil {
			log.Warn().Err(err).Msg("sth realized price unavailable")
		} else {
			ind.STHRealized = v
		}
		if v, err := s.OnChain.MVRVZScore(ctx); err != nil {
			log.Warn().Err(err).Msg("mvrv z-score unavailable")
		} else {
			ind.MVRVZScore = v
		}
	}

	return ind
}

func hotAlts(sorted []model.Ticker, btcVolume float64) []string {
	if btcVolume <= 0 {
		return nil
	}
	var out []string
	for _, t := range sorted[:min(hotAltCandidates, len(sorted))] {
		if majors[t.Symbol] {
			continue
		}
		if ratio := t.QuoteVolume / btcVolume; ratio > hotAltRatio {
			out = append(out, fmt.Sprintf("**%s** Vol: $%.2fB (%.0f%% of BTC)", t.Symbol, t.QuoteVolume/1e9, ratio*100))
		}
	}
	return out
}

// openInterest sums aggregated OI: BTC and ETH in coins priced at the
// Binance last price, alts over the most traded Binance perpetuals.
func (s *DashboardScanner) openInterest(ctx context.Context, ind *model.DashboardIndicators, tickers map[string]model.Ticker) {
	markets, err := s.Derivatives.FutureMarkets(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("derivatives markets unavailable")
		return
	}
	perps := lo.Filter(markets, func(m collector.CoinalyzeMarket, _ int) bool { return m.IsPerpetual })

	var btcPerps, ethPerps []string
	type alt struct {
		symbol string
		pair   string
		volume float64
	}
	var alts []alt
	for _, m := range perps {
		switch m.BaseAsset {
		case "BTC":
			btcPerps = append(btcPerps, m.Symbol)
		case "ETH":
			ethPerps = append(ethPerps, m.Symbol)
		default:
			if t, ok := tickers[m.SymbolOnExchange]; ok && t.QuoteVolume > 0 {
				alts = append(alts, alt{symbol: m.Symbol, pair: m.SymbolOnExchange, volume: t.QuoteVolume})
			}
		}
	}
	sort.SliceStable(alts, func(i, j int) bool { return alts[i].volume > alts[j].volume })
	alts = alts[:min(altUniverse, len(alts))]
	altPair := lo.SliceToMap(alts, func(a alt) (string, string) { return a.symbol, a.pair })

	btcUnits := s.sumOI(ctx, btcPerps, nil)
	ethUnits := s.sumOI(ctx, ethPerps, nil)
	altSymbols := lo.Keys(altPair)
	sort.Strings(altSymbols)
	ind.AltOI = s.sumOI(ctx, altSymbols, func(symbol string) float64 {
		return tickers[altPair[symbol]].LastPrice
	})

	ethPrice := tickers["ETHUSDT"].LastPrice
	ind.BTCOI = btcUnits * ind.BTCPrice
	ind.ETHOI = ethUnits * ethPrice
	if total := ind.BTCOI + ind.ETHOI + ind.AltOI; total > 0 {
		ind.AltShare = ind.AltOI / total * 100
	}

	if len(btcPerps) == 0 {
		return
	}
	rates, err := s.Derivatives.PredictedFunding(ctx, btcPerps[:min(fundingPerps, len(btcPerps))])
	if err != nil {
		log.Warn().Err(err).Msg("predicted funding unavailable")
		return
	}
	if len(rates) > 0 {
		avg := lo.SumBy(rates, func(r collector.SymbolValue) float64 { return r.Value }) / float64(len(rates))
		ind.AnnualFunding = avg * fundingPerYear * 100
	}
}

// sumOI fetches OI in batches and sums it, multiplied by price when given.
func (s *DashboardScanner) sumOI(ctx context.Context, symbols []string, price func(string) float64) float64 {
	total := 0.0
	for i, batch := range lo.Chunk(symbols, coinalyzeBatch) {
		if i > 0 && s.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return total
			case <-time.After(s.BatchPause):
			}
		}
		values, err := s.Derivatives.OpenInterest(ctx, batch)
		if err != nil {
			log.Warn().Err(err).Int("batch", len(batch)).Msg("open interest batch failed")
			continue
		}
		for _, v := range values {
			if price == nil {
				total += v.Value
			} else {
				total += v.Value * price(v.Symbol)
			}
		}
	}
	return total
}

func (s *DashboardScanner) technicals(ctx context.Context, ind *model.DashboardIndicators) {
	daily, err := s.Market.Klines(ctx, "BTCUSDT", "1d", dailyBars)
	if err != nil {
		log.Warn().Err(err).Msg("daily candles unavailable")
		return
	}
	if ind.BTCPrice == 0 && len(daily) > 0 {
		ind.BTCPrice = daily[len(daily)-1].Close
	}
	if v, err := calculator.MA200(daily); err == nil {
		ind.MA200 = v
	}
	if v, err := calculator.MA111(daily); err == nil {
		ind.MA111 = v
	}
	if v, err := calculator.RSI(calculator.Closes(daily), rsiPeriod); err == nil {
		ind.DailyRSI = v
	}
}

func (s *DashboardScanner) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
