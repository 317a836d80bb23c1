package player

import (
	"context"
	"image"

	"github.com/vidnote/vidnote/internal/capture"
)

// Media is a decodable local video.
type Media interface {
	Duration() float64
	Size() (width, height int)
	Decoded() int
	FrameAt(ctx context.Context, seconds float64) (image.Image, error)
	Close() error
}

// FileWidget plays a local file. It exposes its decoder as a capture surface.
type FileWidget struct {
	*clock
	path  string
	media Media
}

func NewFileWidget(path string, media Media) *FileWidget {
	var duration float64
	if media != nil {
		duration = media.Duration()
	}
	return &FileWidget{clock: newClock(duration), path: path, media: media}
}

func (w *FileWidget) Path() string { return w.path }

func (w *FileWidget) Ready() bool { return w.media != nil }

func (w *FileWidget) Position() (float64, error) {
	if !w.Ready() {
		return 0, ErrNotReady
	}
	return w.position(), nil
}

func (w *FileWidget) Seek(_ context.Context, seconds float64) error {
	if !w.Ready() {
		return ErrNotReady
	}
	w.seek(seconds)
	return nil
}

func (w *FileWidget) Play() error {
	if !w.Ready() {
		return ErrNotReady
	}
	w.play()
	return nil
}

func (w *FileWidget) Pause() error {
	if !w.Ready() {
		return ErrNotReady
	}
	w.pause()
	return nil
}

func (w *FileWidget) Duration() float64 { return w.duration }

func (w *FileWidget) Close() error {
	if w.media == nil {
		return nil
	}
	return w.media.Close()
}

// Surface returns the decoder as a capture surface.
func (w *FileWidget) Surface() capture.Surface {
	if w.media == nil {
		return nil
	}
	return fileSurface{w.media}
}

type fileSurface struct{ media Media }

func (s fileSurface) Size() (int, int)   { return s.media.Size() }
func (s fileSurface) FramesDecoded() int { return s.media.Decoded() }
func (s fileSurface) Frame(ctx context.Context, at float64) (image.Image, error) {
	return s.media.FrameAt(ctx, at)
}
