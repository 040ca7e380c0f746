// Package notifier provides a webhook client for operational notifications
// (pending review digests, campaign completions, weekly league results).
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/karmahq/karma-server/internal/config"
	"github.com/karmahq/karma-server/pkg/logger"
)

// Client posts JSON messages to a configured incoming webhook.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	log        *logger.Logger
}

// NewClient creates a new webhook notifier.
func NewClient(cfg *config.NotifierConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		log:        log,
	}
}

// Message represents a webhook message payload.
type Message struct {
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	IconURL  string `json:"icon_url,omitempty"`
}

// SendMessage sends a message to the webhook.
func (c *Client) SendMessage(msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Notifier is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent webhook message")

	return nil
}

// PendingCompletion summarizes a completion awaiting review for the digest.
type PendingCompletion struct {
	User        string
	Campaign    string
	Task        string
	SubmittedAt time.Time
}

// SendPendingReviewDigest posts the daily digest of completions awaiting
// admin review. Nothing is sent when the queue is empty.
func (c *Client) SendPendingReviewDigest(pending []PendingCompletion) error {
	if len(pending) == 0 {
		c.log.Debug().Msg("No pending completions, skipping digest")
		return nil
	}

	text := fmt.Sprintf("### 📋 Pending Review Digest\n\nThere are **%d** task completions awaiting review:\n\n", len(pending))

	for _, p := range pending {
		age := time.Since(p.SubmittedAt)
		ageStr := fmt.Sprintf("%.1f hours", age.Hours())
		if age.Hours() > 24 {
			ageStr = fmt.Sprintf("%.1f days", age.Hours()/24)
		}

		icon := "•"
		if age.Hours() > 48 {
			icon = "⚠️"
		}

		text += fmt.Sprintf("%s **%s** — %s (@%s, %s old)\n", icon, p.Campaign, p.Task, p.User, ageStr)
	}

	text += "\n_Please review these submissions when you have time!_ 🙏"

	return c.SendMessage(&Message{
		Username: "Karma Bot",
		Text:     text,
	})
}

// SendCampaignCompleted announces a campaign reaching 100% progress.
func (c *Client) SendCampaignCompleted(mission, brand string, targetAmount float64) error {
	text := fmt.Sprintf(
		"🎉 **Campaign completed!**\n\n**%s** (sponsored by %s) reached 100%% progress. Funding target: %.2f.",
		mission, brand, targetAmount,
	)
	return c.SendMessage(&Message{
		Username: "Karma Bot",
		Text:     text,
	})
}

// LeagueResult is one entry of the weekly league results announcement.
type LeagueResult struct {
	DisplayName string
	Tier        string
	Coins       int
	Rank        int
}

// SendWeeklyLeagueResults posts the weekly league standings.
func (c *Client) SendWeeklyLeagueResults(results []LeagueResult) error {
	if len(results) == 0 {
		c.log.Debug().Msg("No league results, skipping announcement")
		return nil
	}

	text := "🏆 **Weekly League Results**\n\n"
	for _, r := range results {
		medal := "•"
		switch r.Rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}
		text += fmt.Sprintf("%s #%d **%s** — %s league (%d coins)\n", medal, r.Rank, r.DisplayName, r.Tier, r.Coins)
	}

	return c.SendMessage(&Message{
		Username: "Karma Bot",
		Text:     text,
	})
}
