package cv

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestOpenAndFrameAt(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	path := filepath.Join(t.TempDir(), "clip.mp4")
	out, err := exec.Command("ffmpeg",
		"-f", "lavfi",
		"-i", "testsrc=duration=4:size=160x120:rate=25",
		"-pix_fmt", "yuv420p",
		"-y", path,
	).CombinedOutput()
	if err != nil {
		t.Fatalf("generate test video: %v: %s", err, out)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if w, h := f.Size(); w != 160 || h != 120 {
		t.Errorf("unexpected size %dx%d", w, h)
	}
	if d := f.Duration(); d < 3.5 || d > 4.5 {
		t.Errorf("expected ~4s duration, got %v", d)
	}
	if f.Decoded() != 1 {
		t.Errorf("expected first frame decoded on open, got %d", f.Decoded())
	}

	img, err := f.FrameAt(context.Background(), 2)
	if err != nil {
		t.Fatalf("FrameAt: %v", err)
	}
	if img.Bounds().Dx() != 160 {
		t.Errorf("unexpected frame width %d", img.Bounds().Dx())
	}
	if f.Decoded() != 2 {
		t.Errorf("expected 2 decoded frames, got %d", f.Decoded())
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.FrameAt(context.Background(), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestClosedFileRefusesReads(t *testing.T) {
	f := &File{width: 160, height: 120, decoded: 3}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := f.FrameAt(context.Background(), 2); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if got := f.Decoded(); got != 0 {
		t.Errorf("expected no decoded frames after close, got %d", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected error")
	}
}
