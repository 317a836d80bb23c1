package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vidnote/vidnote/internal/capture"
)

const defaultFFmpegTimeout = 15 * time.Second

// FFmpeg decodes single frames by shelling out to ffmpeg.
type FFmpeg struct {
	Path    string
	Timeout time.Duration
}

func (f FFmpeg) bin() string {
	if f.Path == "" {
		return "ffmpeg"
	}
	return f.Path
}

func (f FFmpeg) timeout() time.Duration {
	if f.Timeout <= 0 {
		return defaultFFmpegTimeout
	}
	return f.Timeout
}

// ExtractFrame decodes the frame of input at the given second as PNG.
func (f FFmpeg) ExtractFrame(ctx context.Context, input string, at float64) (image.Image, error) {
	if at < 0 {
		at = 0
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, f.bin(),
		"-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", input,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg: no frame at %.3fs", at)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg frame: %w", err)
	}
	return img, nil
}

// Resolve handles video elements with an http(s) source. The returned
// surface decodes the requested frame in the background until ctx ends and
// reports ready once that succeeds; Frame at the same second reuses it.
func (f FFmpeg) Resolve(ctx context.Context, el capture.Element) (capture.Surface, error) {
	if el.Tag != "video" {
		return nil, nil
	}
	src := strings.TrimSpace(el.Src)
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return nil, nil
	}
	s := &streamSurface{ffmpeg: f, src: src, at: el.At}
	go s.prefetch(ctx)
	return s, nil
}

type streamSurface struct {
	ffmpeg FFmpeg
	src    string
	at     float64

	mu      sync.Mutex
	width   int
	height  int
	decoded int
	frame   image.Image
	frameAt float64
}

func (s *streamSurface) prefetch(ctx context.Context) {
	img, err := s.ffmpeg.ExtractFrame(ctx, s.src, s.at)
	if err != nil {
		return
	}
	s.record(s.at, img)
}

func (s *streamSurface) record(at float64, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := img.Bounds()
	s.width, s.height = b.Dx(), b.Dy()
	s.decoded++
	s.frame, s.frameAt = img, at
}

func (s *streamSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *streamSurface) FramesDecoded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decoded
}

func (s *streamSurface) Frame(ctx context.Context, at float64) (image.Image, error) {
	s.mu.Lock()
	if s.frame != nil && s.frameAt == at {
		img := s.frame
		s.mu.Unlock()
		return img, nil
	}
	s.mu.Unlock()

	img, err := s.ffmpeg.ExtractFrame(ctx, s.src, at)
	if err != nil {
		return nil, err
	}
	s.record(at, img)
	return img, nil
}
