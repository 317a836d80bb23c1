package media

import (
	"context"
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/vidnote/vidnote/internal/capture"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
}

func testVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", "testsrc=duration=3:size=320x240:rate=10",
		"-pix_fmt", "yuv420p",
		"-y", path,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("generate test video: %v: %s", err, out)
	}
	return path
}

func TestExtractFrame(t *testing.T) {
	requireFFmpeg(t)
	path := testVideo(t)

	img, err := FFmpeg{}.ExtractFrame(context.Background(), path, 1.5)
	if err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 320, 240) {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestExtractFrameMissingInput(t *testing.T) {
	requireFFmpeg(t)
	_, err := FFmpeg{}.ExtractFrame(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), 0)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestExtractFrameMissingBinary(t *testing.T) {
	_, err := FFmpeg{Path: "/nonexistent/ffmpeg"}.ExtractFrame(context.Background(), "x.mp4", 0)
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestResolveIgnoresNonVideo(t *testing.T) {
	f := FFmpeg{}
	for _, el := range []capture.Element{
		{Tag: "canvas", Src: "https://example.com/a.mp4"},
		{Tag: "video", Src: "blob:https://example.com/123"},
		{Tag: "video", Src: ""},
	} {
		s, err := f.Resolve(context.Background(), el)
		if s != nil || err != nil {
			t.Errorf("expected %+v to be unhandled, got %v, %v", el, s, err)
		}
	}
}

func TestStreamSurfaceBecomesReady(t *testing.T) {
	requireFFmpeg(t)
	path := testVideo(t)

	s := &streamSurface{ffmpeg: FFmpeg{}, src: path}
	go s.prefetch(context.Background())

	deadline := time.Now().Add(10 * time.Second)
	for s.FramesDecoded() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("surface never decoded a frame")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if w, h := s.Size(); w != 320 || h != 240 {
		t.Errorf("unexpected size %dx%d", w, h)
	}
	if _, err := s.Frame(context.Background(), 2); err != nil {
		t.Errorf("Frame: %v", err)
	}
	if s.FramesDecoded() != 2 {
		t.Errorf("expected 2 decoded frames, got %d", s.FramesDecoded())
	}
}

func TestStreamSurfaceReusesPrefetchedFrame(t *testing.T) {
	s := &streamSurface{ffmpeg: FFmpeg{Path: "/nonexistent/ffmpeg"}, src: "https://cdn.example.com/a.mp4", at: 37.8}
	prefetched := image.NewRGBA(image.Rect(0, 0, 64, 36))
	s.record(37.8, prefetched)

	img, err := s.Frame(context.Background(), 37.8)
	if err != nil {
		t.Fatalf("expected the prefetched frame without running ffmpeg, got %v", err)
	}
	if img != image.Image(prefetched) {
		t.Error("expected the prefetched frame to be returned")
	}
	if _, err := s.Frame(context.Background(), 50); err == nil {
		t.Error("a different second should run ffmpeg and fail with a missing binary")
	}
}

func TestResolvePrefetchesRequestedSecond(t *testing.T) {
	s, err := FFmpeg{Path: "/nonexistent/ffmpeg"}.Resolve(context.Background(), capture.Element{Tag: "video", Src: "https://cdn.example.com/a.mp4", At: 90})
	if err != nil || s == nil {
		t.Fatalf("expected a stream surface, got %v, %v", s, err)
	}
	if got := s.(*streamSurface).at; got != 90 {
		t.Errorf("expected prefetch at 90, got %v", got)
	}
}

func TestScreenCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Screen{}).Rasterize(ctx, image.Rect(0, 0, 10, 10)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScreenOffscreen(t *testing.T) {
	if os.Getenv("DISPLAY") == "" {
		t.Skip("no display")
	}
	_, err := (Screen{}).Rasterize(context.Background(), image.Rect(-500, -500, -400, -400))
	if !errors.Is(err, ErrOffscreen) {
		t.Errorf("expected ErrOffscreen, got %v", err)
	}
}
