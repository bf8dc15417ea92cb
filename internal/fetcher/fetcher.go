package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/proxy"

	"CoinSentry/internal/metrics"
)

var (
	// ErrUnavailable means neither the direct route nor any proxy produced data.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrRateLimited means an endpoint kept answering 429.
	ErrRateLimited = errors.New("rate limited")
)

const maxBodySize = 16 << 20

// StatusError is a non-2xx answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("status %d: %s", e.Code, body)
}

// ProxySource yields proxy endpoints. *proxypool.Pool satisfies it.
type ProxySource interface {
	Next(ctx context.Context) (string, bool)
}

// Request is one logical call. Body is kept as bytes so it can be replayed
// on every attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// DirectOnly disables proxy failover, for authenticated calls.
	DirectOnly bool
}

// Response is the first accepted answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	// Via is "direct" or the proxy endpoint that served the request.
	Via string
}

// Decode unmarshals the body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Options tunes the fetcher.
type Options struct {
	DirectTimeout    time.Duration
	ProxyTimeout     time.Duration
	MaxProxyAttempts int
	UserAgent        string
	Policy           RetryPolicy
}

// Fetcher performs direct-then-proxy requests with rate limit handling.
type Fetcher struct {
	pool  ProxySource
	opts  Options
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Fetcher. pool may be nil, in which case only the direct
// route is used.
func New(pool ProxySource, opts Options) *Fetcher {
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = 3 * time.Second
	}
	if opts.ProxyTimeout <= 0 {
		opts.ProxyTimeout = 8 * time.Second
	}
	if opts.MaxProxyAttempts <= 0 {
		opts.MaxProxyAttempts = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	def := DefaultPolicy()
	if opts.Policy.MaxAttempts <= 0 {
		opts.Policy.MaxAttempts = def.MaxAttempts
	}
	if opts.Policy.DefaultRetryAfter <= 0 {
		opts.Policy.DefaultRetryAfter = def.DefaultRetryAfter
	}
	if opts.Policy.Accept == nil {
		opts.Policy.Accept = def.Accept
	}
	return &Fetcher{
		pool:  pool,
		opts:  opts,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// Get is a shortcut for a GET request.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return f.Fetch(ctx, &Request{Method: http.MethodGet, URL: rawURL, Header: header})
}

// Fetch tries the direct route first, then up to MaxProxyAttempts proxies.
// A failure is logged and returned; it never aborts the caller's batch.
func (f *Fetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	resp, err := f.attempt(ctx, req, "", f.opts.DirectTimeout)
	if err == nil {
		return resp, nil
	}
	lastErr := err
	log.Debug().Err(err).Str("url", req.URL).Msg("direct request failed")

	if !req.DirectOnly && f.pool != nil {
		for i := 0; i < f.opts.MaxProxyAttempts; i++ {
			if ctx.Err() != nil {
				lastErr = ctx.Err()
				break
			}
			ep, ok := f.pool.Next(ctx)
			if !ok {
				break
			}
			resp, err := f.attempt(ctx, req, ep, f.opts.ProxyTimeout)
			if err == nil {
				log.Debug().Str("url", req.URL).Str("proxy", ep).Msg("served via proxy")
				return resp, nil
			}
			lastErr = err
			log.Debug().Err(err).Str("url", req.URL).Str("proxy", ep).Msg("proxy attempt failed")
		}
	}

	log.Warn().Err(lastErr).Str("url", req.URL).Msg("fetch failed on all routes")
	return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.URL, lastErr)
}

// attempt runs the request against one endpoint, retrying the same endpoint
// while it answers 429.
func (f *Fetcher) attempt(ctx context.Context, req *Request, proxyURL string, timeout time.Duration) (*Response, error) {
	route := "direct"
	if proxyURL != "" {
		route = "proxy"
	}
	client, err := newClient(proxyURL, timeout)
	if err != nil {
		metrics.FetchAttempts.WithLabelValues(route, "bad_proxy").Inc()
		return nil, err
	}
	// each attempt owns its transport; drop its keep-alive connections on return
	defer client.CloseIdleConnections()

	for n := 1; ; n++ {
		resp, err := f.do(ctx, client, req)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues(route, "error").Inc()
			return nil, err
		}

		if resp.Status == http.StatusTooManyRequests {
			metrics.FetchAttempts.WithLabelValues(route, "rate_limited").Inc()
			metrics.RateLimited.Inc()
			if n >= f.opts.Policy.MaxAttempts {
				return nil, fmt.Errorf("%w after %d attempts", ErrRateLimited, n)
			}
			wait := retryAfter(resp.Header, f.opts.Policy.DefaultRetryAfter, f.now()) + time.Second
			log.Warn().Str("url", req.URL).Str("route", route).Dur("wait", wait).Int("attempt", n).Msg("rate limited, backing off")
			if err := f.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.Status < 200 || resp.Status > 299 {
			metrics.FetchAttempts.WithLabelValues(route, "status").Inc()
			return nil, &StatusError{Code: resp.Status, Body: string(resp.Body)}
		}
		if !f.opts.Policy.Accept(resp.Body) {
			metrics.FetchAttempts.WithLabelValues(route, "rejected").Inc()
			return nil, errors.New("response rejected: restricted")
		}

		metrics.FetchAttempts.WithLabelValues(route, "ok").Inc()
		resp.Via = route
		if proxyURL != "" {
			resp.Via = proxyURL
		}
		return resp, nil
	}
}

func (f *Fetcher) do(ctx context.Context, client *http.Client, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", f.opts.UserAgent)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// newClient builds a client for one route. HTTP(S) proxies go through the
// transport's Proxy hook, SOCKS5 through a custom dialer.
func newClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: timeout,
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", proxyURL, err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			dialer, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("socks5 dialer: %w", err)
			}
			cd, ok := dialer.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks5 dialer for %s lacks context support", u.Host)
			}
			transport.DialContext = cd.DialContext
		default:
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
