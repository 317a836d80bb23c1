package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vidnote/vidnote/internal/archive"
	"github.com/vidnote/vidnote/internal/database"
)

const (
	maxResponseBodyBytes = 1024

	EventCaptureArchived = "capture.archived"
)

// Event is the JSON body posted to the endpoint.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data"`
}

type Config struct {
	URL    string
	Secret string
	// DB, when set, records every delivery attempt in webhook_deliveries.
	DB     database.DBTX
	Logger *slog.Logger
}

// Client posts signed events to one endpoint, retrying failed deliveries.
type Client struct {
	url         string
	secret      string
	db          database.DBTX
	logger      *slog.Logger
	http        *http.Client
	retryDelays []time.Duration
	now         func() time.Time
}

func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:         cfg.URL,
		secret:      cfg.Secret,
		db:          cfg.DB,
		logger:      logger,
		http:        &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
		now:         time.Now,
	}
}

// SignPayload computes the HMAC-SHA256 of payload with secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// CaptureArchived announces a stored capture, with a download URL the
// receiver can fetch until it expires.
func (c *Client) CaptureArchived(ctx context.Context, userID string, rec archive.Record) error {
	return c.Dispatch(ctx, Event{
		Name:      EventCaptureArchived,
		Timestamp: c.now().UTC(),
		UserID:    userID,
		Data: map[string]any{
			"id":            rec.ID,
			"source":        rec.Source,
			"title":         rec.Title,
			"targetSeconds": rec.TargetSeconds,
			"strategyId":    rec.StrategyID,
			"sizeBytes":     rec.SizeBytes,
			"url":           rec.URL,
		},
	})
}

// Dispatch posts event with up to 1+len(retryDelays) attempts.
func (c *Client) Dispatch(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	signature := ""
	if c.secret != "" {
		signature = SignPayload(c.secret, body)
	}
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, body, signature)
		c.logDelivery(ctx, event, body, statusCode, respBody, attempt)

		if err == nil && statusCode != nil && *statusCode >= 200 && *statusCode < 300 {
			return nil
		}
		if err != nil {
			lastErr = err
		} else if statusCode != nil {
			lastErr = fmt.Errorf("webhook returned status %d", *statusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (c *Client) doPost(ctx context.Context, body []byte, signature string) (*int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error(), err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}
	return &resp.StatusCode, respBody, nil
}

func (c *Client) logDelivery(ctx context.Context, event Event, payload []byte, statusCode *int, responseBody string, attempt int) {
	if c.db == nil {
		if statusCode == nil || *statusCode >= 300 {
			c.logger.Warn("webhook delivery failed", "event", event.Name, "attempt", attempt, "response", responseBody)
		}
		return
	}
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (user_id, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.UserID, event.Name, payload, statusCode, responseBody, attempt,
	); err != nil {
		c.logger.Error("webhook: failed to log delivery", "user_id", event.UserID, "error", err)
	}
}
