package proxypool

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"CoinSentry/internal/metrics"
)

// DefaultSources are public plaintext lists with one "host:port" per line.
var DefaultSources = []string{
	"https://raw.githubusercontent.com/monosans/proxy-list/main/proxies/http.txt",
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
}

// Pool hands out proxy endpoints round-robin. It refreshes lazily, only when
// empty, and a refresh replaces the whole list. Refreshes run outside the
// cursor lock and concurrent callers share one in-flight refresh.
type Pool struct {
	mu           sync.Mutex
	endpoints    []string
	cursor       int
	sources      []string
	maxPerSource int
	client       *http.Client
	refreshes    singleflight.Group
}

// New creates an empty pool. Endpoints are loaded on the first Next call.
func New(sources []string, maxPerSource int, client *http.Client) *Pool {
	if maxPerSource <= 0 {
		maxPerSource = 50
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Pool{
		sources:      sources,
		maxPerSource: maxPerSource,
		client:       client,
	}
}

// Next returns the endpoint at the cursor and advances it, wrapping to the
// start. It returns false when the pool is empty even after a refresh.
func (p *Pool) Next(ctx context.Context) (string, bool) {
	if ep, ok := p.next(); ok {
		return ep, true
	}
	p.refresh(ctx, false)
	return p.next()
}

// Refresh reloads the pool from every source. Unreachable sources are skipped;
// if all of them fail the pool ends up empty.
func (p *Pool) Refresh(ctx context.Context) int {
	p.refresh(ctx, true)
	return p.Len()
}

// Len reports the number of endpoints currently held.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

func (p *Pool) next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endpoints) == 0 {
		return "", false
	}
	ep := p.endpoints[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.endpoints)
	return ep, true
}

// refresh loads every source and swaps the list in. Unless forced it is a
// no-op when another caller already filled the pool.
func (p *Pool) refresh(ctx context.Context, force bool) {
	p.refreshes.Do("refresh", func() (any, error) {
		if !force && p.Len() > 0 {
			return nil, nil
		}
		var all []string
		for _, src := range p.sources {
			lines, err := p.fetchSource(ctx, src)
			if err != nil {
				log.Warn().Err(err).Str("source", src).Msg("proxy source unavailable")
				continue
			}
			all = append(all, lines...)
		}
		endpoints := lo.Uniq(all)

		p.mu.Lock()
		p.endpoints = endpoints
		p.cursor = 0
		p.mu.Unlock()

		metrics.ProxyPoolSize.Set(float64(len(endpoints)))
		log.Info().Int("count", len(endpoints)).Msg("proxy pool refreshed")
		return nil, nil
	})
}

func (p *Pool) fetchSource(ctx context.Context, src string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() && len(out) < p.maxPerSource {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, Normalize(line))
	}
	return out, sc.Err()
}

// Normalize adds the http scheme to bare "host:port" entries.
func Normalize(entry string) string {
	if strings.Contains(entry, "://") {
		return entry
	}
	return "http://" + entry
}
