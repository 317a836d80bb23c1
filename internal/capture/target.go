package capture

import (
	"context"
	"image"
)

// Target is whatever is mounted: the widget's own surface, if it has one,
// and the container it is rendered into.
type Target interface {
	Surface() Surface
	Container() Container
}

// Surface is a pixel-bearing frame source.
type Surface interface {
	Size() (width, height int)
	FramesDecoded() int
	Frame(ctx context.Context, at float64) (image.Image, error)
}

// Container is the rendered subtree the widget lives in.
type Container interface {
	Markup() string
	Bounds() image.Rectangle
	Isolated() bool
}

// Element is a candidate surface found in container markup.
type Element struct {
	Tag    string
	Src    string
	Frame  string
	Width  int
	Height int
	// At is the playback second the capture wants, so a resolver can decode
	// that frame up front.
	At     float64
}

// SurfaceResolver turns a markup element into a live Surface. It returns
// nil when it does not handle the element.
type SurfaceResolver interface {
	Resolve(ctx context.Context, el Element) (Surface, error)
}

// Rasterizer snapshots a region of the rendered display.
type Rasterizer interface {
	Rasterize(ctx context.Context, bounds image.Rectangle) (image.Image, error)
}

// Resolvers tries each resolver in order and returns the first surface.
type Resolvers []SurfaceResolver

func (rs Resolvers) Resolve(ctx context.Context, el Element) (Surface, error) {
	var firstErr error
	for _, r := range rs {
		s, err := r.Resolve(ctx, el)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if s != nil {
			return s, nil
		}
	}
	return nil, firstErr
}

type noTarget struct{}

func (noTarget) Surface() Surface     { return nil }
func (noTarget) Container() Container { return nil }

// StaticSurface serves one already-decoded image for every timestamp.
type StaticSurface struct {
	Image image.Image
}

func (s StaticSurface) Size() (int, int) {
	if s.Image == nil {
		return 0, 0
	}
	b := s.Image.Bounds()
	return b.Dx(), b.Dy()
}

func (s StaticSurface) FramesDecoded() int {
	if s.Image == nil {
		return 0
	}
	return 1
}

func (s StaticSurface) Frame(context.Context, float64) (image.Image, error) {
	return s.Image, nil
}
