// Package sink delivers finished leaderboards to their external
// destinations.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vihansingh1735-lab/cobalstonee/internal/report"
)

const (
	// DefaultTimeout is the per-delivery HTTP timeout.
	DefaultTimeout = 15 * time.Second

	embedColor = 0x2ecc71
)

// WebhookConfig holds webhook sink settings.
type WebhookConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// Webhook posts daily leaderboards to Discord-compatible webhook URLs as a
// single embed. A group's webhook URL is its report sink reference.
type Webhook struct {
	httpClient *http.Client
	userAgent  string
	logger     zerolog.Logger
}

// NewWebhook creates a webhook sink.
func NewWebhook(config WebhookConfig, logger zerolog.Logger) *Webhook {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = "cobalstonee"
	}

	return &Webhook{
		httpClient: &http.Client{Timeout: config.Timeout},
		userAgent:  config.UserAgent,
		logger:     logger.With().Str("component", "webhook-sink").Logger(),
	}
}

type webhookEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

// Deliver posts the leaderboard for one group. Members with zero points are
// left off the board; a day where nobody scored is a successful no-op, so the
// scheduler still marks it handled.
func (w *Webhook) Deliver(ctx context.Context, groupID, webhookURL string, entries []report.Entry) error {
	var lines []string
	rank := 0
	for _, entry := range entries {
		if entry.PointsToday <= 0 {
			continue
		}
		rank++
		lines = append(lines, fmt.Sprintf("**%d.** <@%s> — 🪙 %d", rank, entry.MemberID, entry.PointsToday))
	}

	if len(lines) == 0 {
		w.logger.Debug().Str("group_id", groupID).Msg("No points scored today, skipping report")
		return nil
	}

	payload, err := json.Marshal(webhookPayload{
		Embeds: []webhookEmbed{{
			Title:       "📊 Daily Operations Report",
			Description: strings.Join(lines, "\n"),
			Color:       embedColor,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
