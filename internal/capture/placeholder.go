package capture

import (
	"context"
	"image"
	"image/color"

	"github.com/vidnote/vidnote/internal/overlay"
)

const (
	PlaceholderWidth      = 640
	PlaceholderHeight     = 360
	PlaceholderTitleLimit = 40
)

var (
	placeholderTop    = color.RGBA{R: 0x1e, G: 0x29, B: 0x3b, A: 0xff}
	placeholderBottom = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
	iconDisc          = color.RGBA{R: 0x33, G: 0x41, B: 0x55, A: 0xff}
	iconGlyph         = color.RGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff}
	captionColor      = color.RGBA{R: 0xcb, G: 0xd5, B: 0xe1, A: 0xff}
)

// Placeholder always produces a frame, so it terminates every chain.
func Placeholder() Strategy {
	return Strategy{
		ID:         StrategyPlaceholder,
		TitleLimit: PlaceholderTitleLimit,
		Attempt: func(_ context.Context, _ Target, req Request) (*Result, error) {
			return &Result{Image: RenderPlaceholder(req)}, nil
		},
	}
}

// RenderPlaceholder draws a play icon with the precise timestamp and the
// truncated title underneath.
func RenderPlaceholder(req Request) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, PlaceholderWidth, PlaceholderHeight))

	for y := 0; y < PlaceholderHeight; y++ {
		c := lerp(placeholderTop, placeholderBottom, y, PlaceholderHeight-1)
		for x := 0; x < PlaceholderWidth; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	cx, cy, r := PlaceholderWidth/2, 140, 48
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, iconDisc)
			}
		}
	}
	// Play triangle pointing right, centred in the disc.
	half := 22
	for x := 0; x <= 2*half-4; x++ {
		span := half - x/2
		for y := -span; y <= span; y++ {
			img.SetRGBA(cx-half+8+x, cy+y, iconGlyph)
		}
	}

	label := overlay.FormatPrecise(req.TargetSeconds)
	drawCentred(img, label, 214, 3, iconGlyph)

	if title := overlay.Truncate(req.Title, PlaceholderTitleLimit); title != "" {
		drawCentred(img, title, 270, 2, captionColor)
	}
	return img
}

func drawCentred(img *image.RGBA, s string, y, scale int, c color.Color) {
	x := (img.Bounds().Dx() - overlay.TextWidth(s, scale)) / 2
	overlay.DrawText(img, s, image.Pt(x, y), scale, c)
}

func lerp(a, b color.RGBA, i, n int) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8((int(x)*(n-i) + int(y)*i) / n)
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}
