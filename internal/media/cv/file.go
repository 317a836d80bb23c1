package cv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

var ErrClosed = errors.New("video file closed")

// File is a local video decoded with OpenCV. Once closed, reads fail with
// ErrClosed instead of reaching the released decoder.
type File struct {
	mu       sync.Mutex
	closed   bool
	vc       *gocv.VideoCapture
	duration float64
	width    int
	height   int
	decoded  int
}

// Open opens path and decodes its first frame to make sure it is playable.
func Open(path string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}

	first := gocv.NewMat()
	defer first.Close()
	if ok := vc.Read(&first); !ok || first.Empty() {
		_ = vc.Close()
		return nil, fmt.Errorf("no decodable frames in %s", path)
	}

	var duration float64
	if fps := vc.Get(gocv.VideoCaptureFPS); fps > 0 {
		duration = vc.Get(gocv.VideoCaptureFrameCount) / fps
	}

	return &File{
		vc:       vc,
		duration: duration,
		width:    first.Cols(),
		height:   first.Rows(),
		decoded:  1,
	}, nil
}

func (f *File) Duration() float64 { return f.duration }

func (f *File) Size() (int, int) { return f.width, f.height }

// Decoded is 0 once the file is closed.
func (f *File) Decoded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0
	}
	return f.decoded
}

// FrameAt seeks to seconds and decodes the next frame.
func (f *File) FrameAt(ctx context.Context, seconds float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	if seconds < 0 {
		seconds = 0
	}
	f.vc.Set(gocv.VideoCapturePosMsec, seconds*1000)

	frame := gocv.NewMat()
	defer frame.Close()
	if ok := f.vc.Read(&frame); !ok || frame.Empty() {
		return nil, fmt.Errorf("no frame at %.2fs", seconds)
	}
	f.decoded++

	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.vc == nil {
		return nil
	}
	return f.vc.Close()
}
