package collector

import (
	"context"
	"net/http"
	"strconv"

	"CoinSentry/internal/fetcher"
)

// Fetcher performs HTTP requests for collectors. *fetcher.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req *fetcher.Request) (*fetcher.Response, error)
}

func getJSON(ctx context.Context, f Fetcher, url string, header http.Header, out any) error {
	resp, err := f.Fetch(ctx, &fetcher.Request{Method: http.MethodGet, URL: url, Header: header})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// num parses an upstream numeric string, 0 when malformed.
func num(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
