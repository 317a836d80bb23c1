package media

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/vova616/screenshot"
)

var ErrOffscreen = errors.New("region is outside the screen")

// Screen rasterizes regions of the local display. Container bounds are in
// screen coordinates.
type Screen struct{}

func (Screen) Rasterize(ctx context.Context, bounds image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	screen, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("screen bounds: %w", err)
	}
	region := bounds.Intersect(screen)
	if region.Empty() {
		return nil, ErrOffscreen
	}
	img, err := screenshot.CaptureRect(region)
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return img, nil
}
