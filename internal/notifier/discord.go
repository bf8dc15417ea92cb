package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed colors.
const (
	ColorRed   = 16711680
	ColorGreen = 65280
)

// EmbedField is one titled block of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is a Discord rich message.
type Embed struct {
	Title  string       `json:"title"`
	Color  int          `json:"color"`
	Fields []EmbedField `json:"fields"`
	Footer *struct {
		Text string `json:"text"`
	} `json:"footer,omitempty"`
}

// SetFooter sets the footer text.
func (e *Embed) SetFooter(text string) {
	e.Footer = &struct {
		Text string `json:"text"`
	}{Text: text}
}

// DiscordNotifier posts embeds to a webhook.
type DiscordNotifier struct {
	WebhookURL string
	Username   string
	Client     *http.Client
}

func NewDiscordNotifier(webhookURL, username string) *DiscordNotifier {
	return &DiscordNotifier{
		WebhookURL: webhookURL,
		Username:   username,
		Client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// SendEmbed posts a single embed.
func (d *DiscordNotifier) SendEmbed(ctx context.Context, e Embed) error {
	body, err := json.Marshal(map[string]any{
		"username": d.Username,
		"embeds":   []Embed{e},
	})
	if err != nil {
		return fmt.Errorf("marshal embed: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
