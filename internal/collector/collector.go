package collector

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"CoinSentry/internal/model"
)

// BalanceSource is an account whose holdings are valued.
type BalanceSource interface {
	Name() string
	Snapshot(ctx context.Context) (model.SourceSnapshot, error)
}

// Collector fetches every balance source concurrently.
type Collector struct {
	Sources []BalanceSource
}

// NewCollector creates a Collector over the given sources.
func NewCollector(sources ...BalanceSource) *Collector {
	return &Collector{Sources: sources}
}

// CollectHoldings returns one snapshot per source, ordered by name. A
// failing source contributes empty holdings and never blocks the others.
func (c *Collector) CollectHoldings(ctx context.Context) []model.SourceSnapshot {
	var (
		mu  sync.Mutex
		out = make([]model.SourceSnapshot, 0, len(c.Sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range c.Sources {
		g.Go(func() error {
			snap, err := src.Snapshot(gctx)
			if err != nil {
				log.Error().Err(err).Str("source", src.Name()).Msg("fetch holdings failed")
				snap = model.SourceSnapshot{Source: src.Name(), Holdings: model.Holdings{}}
			}
			snap.Source = src.Name()
			mu.Lock()
			out = append(out, snap)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
