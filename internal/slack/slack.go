package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidnote/vidnote/internal/archive"
	"github.com/vidnote/vidnote/internal/overlay"
)

// Client posts capture notifications to a Slack incoming webhook.
type Client struct {
	webhookURL string
	http       *http.Client
	logger     *slog.Logger
}

func New(webhookURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	AltText  string `json:"alt_text,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type payload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

func (c *Client) postMessage(ctx context.Context, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

func captureMessage(rec archive.Record) payload {
	title := rec.Title
	if title == "" {
		title = rec.Source
	}
	at := overlay.FormatClock(rec.TargetSeconds)

	blocks := []block{{
		Type: "section",
		Text: &text{
			Type: "mrkdwn",
			Text: fmt.Sprintf(":camera_with_flash: *Frame captured at %s*\n<%s|%s>", at, rec.Source, overlay.Truncate(title, 80)),
		},
	}}
	if rec.URL != "" {
		blocks = append(blocks, block{Type: "image", ImageURL: rec.URL, AltText: fmt.Sprintf("%s at %s", title, at)})
	}
	blocks = append(blocks, block{
		Type:     "context",
		Elements: []text{{Type: "mrkdwn", Text: "via " + rec.StrategyID}},
	})

	return payload{Text: fmt.Sprintf("Frame captured at %s: %s", at, title), Blocks: blocks}
}

// CaptureArchived posts the archived frame. The image block uses the
// presigned download URL, so Slack must fetch it before the URL expires.
func (c *Client) CaptureArchived(ctx context.Context, userID string, rec archive.Record) error {
	if err := c.postMessage(ctx, captureMessage(rec)); err != nil {
		return fmt.Errorf("slack capture notification for %s: %w", userID, err)
	}
	c.logger.Debug("slack capture notification sent", "capture", rec.ID)
	return nil
}
