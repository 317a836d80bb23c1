package overlay

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

var (
	veilColor   = color.NRGBA{A: 0x30}
	badgeColor  = color.NRGBA{A: 0xb4}
	textColor   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	markerColor = color.NRGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff}
)

// Compose copies src into a new RGBA image of the same size and stamps the
// overlay onto it. src is never modified and the output depends only on its
// inputs.
func Compose(src image.Image, labels Labels) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	if dst.Bounds().Empty() {
		return dst
	}

	scale := ScaleFor(dst.Bounds().Dy())
	margin := 6 * scale
	inset := 3 * scale
	lineH := TextHeight(scale)
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()

	FillRect(dst, dst.Bounds(), veilColor)

	if labels.TimeLabel != "" {
		tw := TextWidth(labels.TimeLabel, scale)
		box := image.Rect(margin, H-margin-lineH-2*inset, margin+tw+2*inset, H-margin)
		FillRect(dst, box, badgeColor)
		DrawText(dst, labels.TimeLabel, box.Min.Add(image.Pt(inset, inset)), scale, textColor)
	}

	if labels.BadgeLabel != "" {
		dot := lineH / 2
		tw := TextWidth(labels.BadgeLabel, scale)
		box := image.Rect(margin, margin, margin+dot+inset+tw+2*inset, margin+lineH+2*inset)
		FillRect(dst, box, badgeColor)
		dotAt := box.Min.Add(image.Pt(inset, inset+(lineH-dot)/2))
		FillRect(dst, image.Rectangle{Min: dotAt, Max: dotAt.Add(image.Pt(dot, dot))}, markerColor)
		DrawText(dst, labels.BadgeLabel, box.Min.Add(image.Pt(2*inset+dot, inset)), scale, textColor)
	}

	if labels.TitleLabel != "" {
		tw := TextWidth(labels.TitleLabel, scale)
		box := image.Rect(W-margin-tw-2*inset, margin, W-margin, margin+lineH+2*inset)
		FillRect(dst, box, badgeColor)
		DrawText(dst, labels.TitleLabel, box.Min.Add(image.Pt(inset, inset)), scale, textColor)
	}

	return dst
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes in a data: URL.
func DataURL(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}
