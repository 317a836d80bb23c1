package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/vidnote/vidnote/internal/archive"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCaptureArchived_PostsCorrectPayload(t *testing.T) {
	var mu sync.Mutex
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &received)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rec := archive.Record{
		ID:            "c1",
		Source:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:         "Intro to Vectors",
		TargetSeconds: 90,
		StrategyID:    "remote-thumbnail",
		URL:           "https://storage.example.com/c1.png",
	}
	if err := New(server.URL, quietLogger()).CaptureArchived(context.Background(), "user-1", rec); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil {
		t.Fatal("expected a request to the Slack webhook")
	}
	if received["text"] != "Frame captured at 1:30: Intro to Vectors" {
		t.Errorf("unexpected fallback text %v", received["text"])
	}

	blocks, ok := received["blocks"].([]any)
	if !ok || len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %v", received["blocks"])
	}

	section := blocks[0].(map[string]any)
	mrkdwn := section["text"].(map[string]any)["text"].(string)
	if mrkdwn != ":camera_with_flash: *Frame captured at 1:30*\n<https://www.youtube.com/watch?v=dQw4w9WgXcQ|Intro to Vectors>" {
		t.Errorf("unexpected section text %q", mrkdwn)
	}

	image := blocks[1].(map[string]any)
	if image["type"] != "image" || image["image_url"] != rec.URL || image["alt_text"] != "Intro to Vectors at 1:30" {
		t.Errorf("unexpected image block %v", image)
	}

	contextBlock := blocks[2].(map[string]any)
	elem := contextBlock["elements"].([]any)[0].(map[string]any)
	if elem["text"] != "via remote-thumbnail" {
		t.Errorf("unexpected context text %v", elem["text"])
	}
}

func TestCaptureMessage_NoURLOmitsImage(t *testing.T) {
	p := captureMessage(archive.Record{Source: "talks/a.mp4", TargetSeconds: 5, StrategyID: "direct-surface"})
	if len(p.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(p.Blocks))
	}
	for _, b := range p.Blocks {
		if b.Type == "image" {
			t.Error("expected no image block without a URL")
		}
	}
	if !strings.Contains(p.Blocks[0].Text.Text, "|talks/a.mp4>") {
		t.Errorf("expected source as fallback title, got %q", p.Blocks[0].Text.Text)
	}
}

func TestCaptureArchived_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := New(server.URL, quietLogger()).CaptureArchived(context.Background(), "user-1", archive.Record{ID: "c1"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("expected error mentioning 403, got %v", err)
	}
}
