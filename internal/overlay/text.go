package overlay

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

// TextWidth is the width in pixels of s drawn at scale.
func TextWidth(s string, scale int) int {
	return len([]rune(s)) * face.Advance * clampScale(scale)
}

// TextHeight is the line height in pixels at scale.
func TextHeight(scale int) int {
	return face.Height * clampScale(scale)
}

// DrawText draws s with its top-left corner at at. The bitmap face is
// rendered once at native size and scaled with nearest-neighbour so glyphs
// stay crisp on large frames.
func DrawText(dst draw.Image, s string, at image.Point, scale int, c color.Color) {
	if s == "" {
		return
	}
	scale = clampScale(scale)
	w, h := TextWidth(s, 1), TextHeight(1)

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	r := image.Rect(at.X, at.Y, at.X+w*scale, at.Y+h*scale)
	xdraw.NearestNeighbor.Scale(dst, r, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

// FillRect blends c over r.
func FillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// ScaleFor picks a text scale so labels stay legible relative to frame height.
func ScaleFor(height int) int {
	return clampScale(height / 240)
}

func clampScale(scale int) int {
	if scale < 1 {
		return 1
	}
	return scale
}
