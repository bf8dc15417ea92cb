package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"CoinSentry/internal/cycle"
	"CoinSentry/internal/model"
	"CoinSentry/internal/notifier"
	"CoinSentry/internal/recorder"
	"CoinSentry/internal/strategy"
)

// Open interest is compared with the first of seven 5m buckets, 30 minutes ago.
const (
	oiHistPeriod = "5m"
	oiHistLimit  = 7
	lsPeriod     = "30m"
	defaultLS    = 1.0
)

// ErrDegraded marks a market scan that could not read tickers or funding.
var ErrDegraded = errors.New("market data unavailable")

// FuturesMarket is the public futures data used by the market scan.
type FuturesMarket interface {
	Tickers(ctx context.Context) ([]model.Ticker, error)
	FundingRates(ctx context.Context) (map[string]float64, error)
	OpenInterest(ctx context.Context, symbol string) (float64, error)
	OpenInterestHist(ctx context.Context, symbol, period string, limit int) ([]float64, error)
	TopLongShortRatio(ctx context.Context, symbol, period string) (float64, error)
}

// MarketResult is the outcome of one market scan.
type MarketResult struct {
	At     time.Time
	Signal *model.MarketSignal
	Cycle  cycle.Outcome
	// Degraded holds the failure reason when no data could be read.
	Degraded string
}

// MarketScanner runs the open interest scan and feeds the LS cycle.
type MarketScanner struct {
	Futures     FuturesMarket
	Cycle       *cycle.Aggregator
	Messenger   Messenger
	Recorder    recorder.Recorder
	Rules       strategy.Rules
	TopSymbols  int
	Concurrency int
	Location    *time.Location

	now  func() time.Time
	mu   sync.RWMutex
	last *MarketResult
}

// Run scans the most traded USDT perpetuals, sends the report and appends
// the snapshot to the cycle. A completed cycle sends the trend report.
func (s *MarketScanner) Run(ctx context.Context) (res *MarketResult, err error) {
	start := time.Now()
	defer func() { observe("market", start, err) }()

	now := s.clock()
	local := now.In(s.location())
	res = &MarketResult{At: now}
	defer func() {
		s.mu.Lock()
		s.last = res
		s.mu.Unlock()
	}()

	tickers, err := s.Futures.Tickers(ctx)
	if err != nil {
		return s.degrade(ctx, res, "Binance ticker request failed", local, err)
	}
	funding, err := s.Futures.FundingRates(ctx)
	if err != nil {
		return s.degrade(ctx, res, "Binance funding rate request failed", local, err)
	}

	universe := topByVolume(tickers, s.topSymbols())
	rows, err := s.collect(ctx, universe, funding)
	if err != nil {
		return res, fmt.Errorf("collect metrics: %w", err)
	}

	res.Signal = strategy.Classify(rows, s.Rules)
	if err := s.Messenger.SendWithRetry(ctx, notifier.FormatMarketScan(res.Signal, local), sendRetries); err != nil {
		log.Error().Err(err).Msg("send market scan failed")
	}

	res.Cycle, err = s.Cycle.Append(ctx, strategy.Snapshot(res.Signal, now))
	if err != nil {
		return res, fmt.Errorf("cycle: %w", err)
	}
	if res.Cycle.Completed {
		msg := notifier.FormatTrendReport(res.Cycle.Report, s.Cycle.Capacity())
		if err := s.Messenger.SendWithRetry(ctx, msg, sendRetries); err != nil {
			log.Error().Err(err).Msg("send trend report failed")
		}
		rec := &recorder.TrendRecord{At: now, Snapshots: s.Cycle.Capacity(), Entries: res.Cycle.Report}
		if err := s.Recorder.RecordTrend(rec); err != nil {
			log.Error().Err(err).Msg("record trend failed")
		}
	}

	log.Info().
		Int("scanned", res.Signal.Scanned).
		Int("accumulation", len(res.Signal.Accumulation)).
		Int("cycle", res.Cycle.Length).
		Bool("completed", res.Cycle.Completed).
		Msg("market scan done")
	return res, nil
}

// Last returns the most recent scan result, or nil before the first scan.
func (s *MarketScanner) Last() *MarketResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *MarketScanner) degrade(ctx context.Context, res *MarketResult, reason string, at time.Time, cause error) (*MarketResult, error) {
	res.Degraded = reason
	log.Error().Err(cause).Msg(strings.ToLower(reason))
	if err := s.Messenger.SendWithRetry(ctx, notifier.FormatScanFailure(reason, at), sendRetries); err != nil {
		log.Error().Err(err).Msg("send scan failure failed")
	}
	return res, fmt.Errorf("%w: %s: %w", ErrDegraded, reason, cause)
}

// collect gathers OI growth and LS ratio per symbol, keeping ticker order.
func (s *MarketScanner) collect(ctx context.Context, tickers []model.Ticker, funding map[string]float64) ([]model.SymbolMetrics, error) {
	rows := make([]model.SymbolMetrics, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for i, t := range tickers {
		g.Go(func() error {
			oiChange, ls := s.openInterest(gctx, t.Symbol)
			rows[i] = model.SymbolMetrics{
				Symbol:      t.Symbol,
				Price:       t.LastPrice,
				PriceChange: t.PriceChangePct,
				QuoteVolume: t.QuoteVolume,
				FundingRate: funding[t.Symbol],
				OIChange:    oiChange,
				LSRatio:     ls,
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// openInterest returns the 30 minute OI growth in percent and the top trader
// LS ratio. Missing data yields 0 growth and the neutral ratio.
func (s *MarketScanner) openInterest(ctx context.Context, symbol string) (growth, ls float64) {
	now, err := s.Futures.OpenInterest(ctx, symbol)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("open interest unavailable")
		return 0, defaultLS
	}
	hist, err := s.Futures.OpenInterestHist(ctx, symbol, oiHistPeriod, oiHistLimit)
	if err != nil || len(hist) == 0 {
		log.Debug().Err(err).Str("symbol", symbol).Msg("open interest history unavailable")
		return 0, defaultLS
	}
	if base := hist[0]; base > 0 {
		growth = (now - base) / base * 100
	}

	ls, err = s.Futures.TopLongShortRatio(ctx, symbol, lsPeriod)
	if err != nil {
		log.Debug().Err(err).Str("symbol", symbol).Msg("long short ratio unavailable")
		ls = defaultLS
	}
	return growth, ls
}

// topByVolume keeps USDT pairs sorted by quote volume, descending.
func topByVolume(tickers []model.Ticker, n int) []model.Ticker {
	usdt := lo.Filter(tickers, func(t model.Ticker, _ int) bool {
		return strings.HasSuffix(t.Symbol, "USDT")
	})
	sort.SliceStable(usdt, func(i, j int) bool { return usdt[i].QuoteVolume > usdt[j].QuoteVolume })
	return usdt[:min(n, len(usdt))]
}

func (s *MarketScanner) topSymbols() int {
	if s.TopSymbols > 0 {
		return s.TopSymbols
	}
	return 50
}

func (s *MarketScanner) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *MarketScanner) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}
