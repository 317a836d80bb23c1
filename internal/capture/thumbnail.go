package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/vidnote/vidnote/internal/overlay"
)

const maxThumbnailBytes = 8 << 20

// Platform recognises sources from one video host and knows where its
// static thumbnails live.
type Platform interface {
	Name() string
	VideoID(source string) (string, bool)
	ThumbnailURLs(id string) []string
}

var youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// YouTubeTiers are tried best first; not every video has every tier.
var YouTubeTiers = []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault", "default"}

type YouTube struct {
	BaseURL string
}

func (YouTube) Name() string { return "youtube" }

func (YouTube) VideoID(source string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "youtube-nocookie.com", "music.youtube.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "embed", "shorts", "live", "v":
				id = parts[1]
			}
		}
	}
	if !youtubeID.MatchString(id) {
		return "", false
	}
	return id, true
}

func (y YouTube) ThumbnailURLs(id string) []string {
	base := y.BaseURL
	if base == "" {
		base = "https://img.youtube.com"
	}
	base = strings.TrimRight(base, "/")
	urls := make([]string, 0, len(YouTubeTiers))
	for _, tier := range YouTubeTiers {
		urls = append(urls, fmt.Sprintf("%s/vi/%s/%s.jpg", base, id, tier))
	}
	return urls
}

// RemoteThumbnail fetches the host's static thumbnail for recognised sources.
// It cannot show the real frame, so the image is marked as approximate.
func RemoteThumbnail(client *http.Client, platforms ...Platform) Strategy {
	if client == nil {
		client = http.DefaultClient
	}
	if len(platforms) == 0 {
		platforms = []Platform{YouTube{}}
	}
	return Strategy{
		ID:         StrategyRemoteThumbnail,
		TitleLimit: overlay.DefaultTitleLimit,
		Attempt: func(ctx context.Context, _ Target, req Request) (*Result, error) {
			for _, p := range platforms {
				id, ok := p.VideoID(req.Source)
				if !ok {
					continue
				}
				var errs []error
				for _, u := range p.ThumbnailURLs(id) {
					img, err := fetchImage(ctx, client, u)
					if err != nil {
						errs = append(errs, err)
						continue
					}
					return &Result{Image: markApproximate(img)}, nil
				}
				return nil, fmt.Errorf("%s thumbnail for %s: %w", p.Name(), id, errors.Join(errs...))
			}
			return nil, nil
		},
	}
}

type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

func fetchImage(ctx context.Context, client *http.Client, u string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", u, err)
	}
	return img, nil
}

var approxColor = color.NRGBA{R: 0xf5, G: 0x9e, B: 0x0b, A: 0xd0}

const approxLabel = "APPROX"

func markApproximate(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	scale := overlay.ScaleFor(b.Dy())
	inset := 3 * scale
	margin := 6 * scale
	w := overlay.TextWidth(approxLabel, scale) + 2*inset
	h := overlay.TextHeight(scale) + 2*inset
	box := image.Rect(b.Dx()-margin-w, b.Dy()-margin-h, b.Dx()-margin, b.Dy()-margin)
	overlay.FillRect(dst, box, approxColor)
	overlay.DrawText(dst, approxLabel, box.Min.Add(image.Pt(inset, inset)), scale, color.Black)
	return dst
}
