package scan

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"CoinSentry/internal/alert"
	"CoinSentry/internal/calculator"
	"CoinSentry/internal/metrics"
	"CoinSentry/internal/model"
	"CoinSentry/internal/notifier"
	"CoinSentry/internal/portfolio"
	"CoinSentry/internal/recorder"
	"CoinSentry/internal/tracker"
)

// Spot candles used to seed the rolling high: three 15m bars cover the
// 30 minute window.
const (
	priceInterval = "15m"
	priceBars     = 3
)

// HoldingsCollector fetches every balance source.
type HoldingsCollector interface {
	CollectHoldings(ctx context.Context) []model.SourceSnapshot
}

// SpotPrices returns last prices of USDT pairs keyed by base asset.
type SpotPrices interface {
	USDTPrices(ctx context.Context) (map[string]float64, error)
}

// PortfolioResult is the outcome of one portfolio scan.
type PortfolioResult struct {
	At        time.Time
	Valuation portfolio.Valuation
	Prices    map[string]model.PriceInfo
	Positions map[string][]model.Position
	Alerts    []alert.Alert
}

// PortfolioScanner prices the holdings of every source, raises drop alerts
// and sends the periodic report.
type PortfolioScanner struct {
	Holdings    HoldingsCollector
	Prices      KlineSource
	Spot        SpotPrices // optional fallback when a symbol has no candles
	Tracker     *tracker.Tracker
	Alerts      *alert.Engine
	Valuator    *portfolio.Valuator
	Messenger   Messenger
	Recorder    recorder.Recorder
	Window      time.Duration
	Concurrency int
	Location    *time.Location

	now   func() time.Time
	runMu sync.Mutex // one scan at a time keeps tracker samples in time order
	mu    sync.RWMutex
	last  *PortfolioResult
}

// Run performs one scan. Alerts are sent as soon as they fire; the report
// is sent only when report is true. Concurrent calls run one after another.
func (s *PortfolioScanner) Run(ctx context.Context, report bool) (res *PortfolioResult, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	job := "alert"
	if report {
		job = "report"
	}
	defer func() { observe(job, start, err) }()

	snaps := s.Holdings.CollectHoldings(ctx)
	holdings := make(map[string]model.Holdings, len(snaps))
	positions := make(map[string][]model.Position)
	for _, snap := range snaps {
		holdings[snap.Source] = snap.Holdings
		if len(snap.Positions) > 0 {
			positions[snap.Source] = snap.Positions
		}
	}

	now := s.clock()
	prices := s.fetchPrices(ctx, s.symbols(snaps), s.spotPrices(ctx), now)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("portfolio scan: %w", ctx.Err())
	}

	res = &PortfolioResult{
		At:        now,
		Valuation: s.Valuator.Value(holdings, prices),
		Prices:    prices,
		Positions: positions,
	}
	for _, sv := range res.Valuation.Sources {
		metrics.PortfolioValue.WithLabelValues(sv.Source).Set(sv.Total)
	}
	metrics.PortfolioValue.WithLabelValues("total").Set(res.Valuation.GrandTotal)

	exposure := s.exposure(snaps)
	for _, sym := range lo.Keys(prices) {
		p := prices[sym]
		if a, ok := s.Alerts.Evaluate(sym, p.Current, p.Max, exposure[sym]*p.Current, now); ok {
			res.Alerts = append(res.Alerts, a)
		}
	}
	sort.Slice(res.Alerts, func(i, j int) bool { return res.Alerts[i].Symbol < res.Alerts[j].Symbol })

	if len(res.Alerts) > 0 {
		log.Warn().Int("count", len(res.Alerts)).Msg("price drop alerts")
		if err := s.Messenger.SendWithRetry(ctx, notifier.FormatAlerts(res.Alerts, s.Window), sendRetries); err != nil {
			log.Error().Err(err).Msg("send alerts failed")
		}
		for _, a := range res.Alerts {
			if err := s.Recorder.RecordAlert(a); err != nil {
				log.Error().Err(err).Str("symbol", a.Symbol).Msg("record alert failed")
			}
		}
	}

	if report {
		msg := notifier.FormatPortfolioReport(res.Valuation, positions, now.In(s.location()))
		if err := s.Messenger.SendWithRetry(ctx, msg, sendRetries); err != nil {
			log.Error().Err(err).Msg("send portfolio report failed")
		}
		if err := s.Recorder.RecordValuation(&recorder.ValuationRecord{At: now, Valuation: res.Valuation}); err != nil {
			log.Error().Err(err).Msg("record valuation failed")
		}
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	log.Info().
		Float64("total", res.Valuation.GrandTotal).
		Int("priced", len(prices)).
		Int("alerts", len(res.Alerts)).
		Msg("portfolio scan done")
	return res, nil
}

// Last returns the most recent scan result, or nil before the first scan.
func (s *PortfolioScanner) Last() *PortfolioResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// symbols lists the canonical non-stable symbols held or positioned.
func (s *PortfolioScanner) symbols(snaps []model.SourceSnapshot) []string {
	var out []string
	for _, snap := range snaps {
		for sym, amt := range snap.Holdings {
			if amt > 0 {
				out = append(out, s.Valuator.Canonical(sym))
			}
		}
		for _, p := range snap.Positions {
			out = append(out, s.Valuator.Canonical(p.Coin))
		}
	}
	out = lo.Filter(lo.Uniq(out), func(sym string, _ int) bool { return !s.Valuator.IsStable(sym) })
	sort.Strings(out)
	return out
}

// exposure sums asset amounts and absolute position sizes per symbol.
func (s *PortfolioScanner) exposure(snaps []model.SourceSnapshot) map[string]float64 {
	out := make(map[string]float64)
	for _, snap := range snaps {
		for sym, amt := range snap.Holdings {
			if amt > 0 {
				out[s.Valuator.Canonical(sym)] += amt
			}
		}
		for _, p := range snap.Positions {
			out[s.Valuator.Canonical(p.Coin)] += math.Abs(p.Size)
		}
	}
	return out
}

// spotPrices loads the ticker fallback, nil when unavailable.
func (s *PortfolioScanner) spotPrices(ctx context.Context) map[string]float64 {
	if s.Spot == nil {
		return nil
	}
	spot, err := s.Spot.USDTPrices(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("spot ticker fallback unavailable")
		return nil
	}
	return spot
}

// fetchPrices reads recent spot candles per symbol, records the latest close
// in the tracker and returns current prices with their rolling max. Symbols
// without candles fall back to the spot ticker; those with neither are skipped.
func (s *PortfolioScanner) fetchPrices(ctx context.Context, symbols []string, spot map[string]float64, now time.Time) map[string]model.PriceInfo {
	var (
		mu  sync.Mutex
		out = make(map[string]model.PriceInfo, len(symbols))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for _, sym := range symbols {
		g.Go(func() error {
			var current, high float64
			bars, err := s.Prices.Klines(gctx, sym+"USDT", priceInterval, priceBars)
			if err == nil && len(bars) > 0 {
				current = bars[len(bars)-1].Close
				high, _ = calculator.RollingHigh(bars, priceBars)
			} else {
				current = spot[sym]
			}
			if current <= 0 {
				log.Debug().Err(err).Str("symbol", sym).Msg("no spot price")
				return nil
			}

			s.Tracker.Record(sym, current, now)
			_, windowMax := s.Tracker.CurrentAndMax(sym)

			mu.Lock()
			out[sym] = model.PriceInfo{Current: current, Max: math.Max(windowMax, high)}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

func (s *PortfolioScanner) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *PortfolioScanner) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}
