package collector

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"CoinSentry/internal/fetcher"
	"CoinSentry/internal/model"
)

const GateURL = "https://api.gateio.ws"

// Gate reads spot account balances with APIv4 HMAC-SHA512 signing.
type Gate struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Fetcher   Fetcher
	now       func() time.Time
}

func NewGate(apiKey, apiSecret string, f Fetcher) *Gate {
	return &Gate{BaseURL: GateURL, APIKey: apiKey, APISecret: apiSecret, Fetcher: f, now: time.Now}
}

func (g *Gate) Name() string { return "gate" }

func (g *Gate) Snapshot(ctx context.Context) (model.SourceSnapshot, error) {
	const path = "/api/v4/spot/accounts"
	snap := model.SourceSnapshot{Source: g.Name(), Holdings: model.Holdings{}}

	ts := strconv.FormatInt(g.now().Unix(), 10)
	header := http.Header{}
	header.Set("KEY", g.APIKey)
	header.Set("Timestamp", ts)
	header.Set("SIGN", g.sign(http.MethodGet, path, "", nil, ts))
	header.Set("Accept", "application/json")

	resp, err := g.Fetcher.Fetch(ctx, &fetcher.Request{
		Method:     http.MethodGet,
		URL:        g.BaseURL + path,
		Header:     header,
		DirectOnly: true,
	})
	if err != nil {
		return snap, fmt.Errorf("gate spot accounts: %w", err)
	}

	var raw []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Locked    string `json:"locked"`
	}
	if err := resp.Decode(&raw); err != nil {
		return snap, err
	}
	for _, r := range raw {
		if amt := num(r.Available) + num(r.Locked); amt > 0 {
			snap.Holdings[r.Currency] += amt
		}
	}
	return snap, nil
}

// sign builds the APIv4 signature:
// HexEncode(HMAC_SHA512(secret, method\npath\nquery\nhex(sha512(body))\ntimestamp)).
func (g *Gate) sign(method, path, query string, body []byte, ts string) string {
	bodyHash := sha512.Sum512(body)
	payload := fmt.Sprintf("%s\n%s\n%s\n%s\n%s", method, path, query, hex.EncodeToString(bodyHash[:]), ts)
	mac := hmac.New(sha512.New, []byte(g.APISecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
