package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vidnote/vidnote/internal/overlay"
)

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultReadyTimeout = 3 * time.Second
)

type DeepSearchOptions struct {
	Resolver     SurfaceResolver
	PollInterval time.Duration
	ReadyTimeout time.Duration
}

// DeepSearch scans the container markup for video, canvas and img elements
// the widget does not expose directly and captures the first one that
// becomes ready within ReadyTimeout.
func DeepSearch(opts DeepSearchOptions) Strategy {
	if opts.Resolver == nil {
		opts.Resolver = DataURLResolver{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	return Strategy{
		ID:         StrategyDeepSearch,
		TitleLimit: overlay.DefaultTitleLimit,
		Attempt:    opts.attempt,
	}
}

func (o DeepSearchOptions) attempt(ctx context.Context, target Target, req Request) (*Result, error) {
	c := target.Container()
	if c == nil || strings.TrimSpace(c.Markup()) == "" {
		return nil, nil
	}

	elements, err := FindSurfaces(c.Markup())
	if err != nil {
		return nil, err
	}

	// Work started by resolvers ends with the attempt.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lastErr error
	for _, el := range elements {
		el.At = req.TargetSeconds
		s, err := o.Resolver.Resolve(ctx, el)
		if err != nil {
			lastErr = fmt.Errorf("resolve %s: %w", el.Tag, err)
			continue
		}
		if s == nil || !waitReady(ctx, s, o.PollInterval, o.ReadyTimeout) {
			continue
		}
		img, err := s.Frame(ctx, req.TargetSeconds)
		if err != nil {
			lastErr = fmt.Errorf("read %s frame: %w", el.Tag, err)
			continue
		}
		if img != nil && !img.Bounds().Empty() {
			return &Result{Image: img}, nil
		}
	}
	return nil, lastErr
}

// FindSurfaces lists the pixel-bearing elements in markup in document order.
// Elements that declare a zero width or height are skipped.
func FindSurfaces(markup string) ([]Element, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse container markup: %w", err)
	}

	var out []Element
	doc.Find("video, canvas, img").Each(func(_ int, sel *goquery.Selection) {
		el := Element{
			Tag:   goquery.NodeName(sel),
			Src:   strings.TrimSpace(sel.AttrOr("src", "")),
			Frame: strings.TrimSpace(sel.AttrOr("data-frame", "")),
		}
		if el.Src == "" && el.Tag == "video" {
			el.Src = strings.TrimSpace(sel.Find("source[src]").First().AttrOr("src", ""))
		}
		w, wok := dimension(sel, "width")
		h, hok := dimension(sel, "height")
		if (wok && w == 0) || (hok && h == 0) {
			return
		}
		el.Width, el.Height = w, h
		out = append(out, el)
	})
	return out, nil
}

func dimension(sel *goquery.Selection, attr string) (int, bool) {
	v, ok := sel.Attr(attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}

func ready(s Surface) bool {
	w, h := s.Size()
	return w > 0 && h > 0 && s.FramesDecoded() > 0
}

func waitReady(ctx context.Context, s Surface, interval, timeout time.Duration) bool {
	if ready(s) {
		return true
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return ready(s)
		case <-ticker.C:
			if ready(s) {
				return true
			}
		}
	}
}

// DataURLResolver decodes surfaces whose pixels are inlined in the markup:
// canvas elements carrying a data-frame snapshot and img elements with a
// data: src.
type DataURLResolver struct{}

func (DataURLResolver) Resolve(_ context.Context, el Element) (Surface, error) {
	var raw string
	switch {
	case el.Tag == "canvas" && el.Frame != "":
		raw = el.Frame
	case strings.HasPrefix(el.Src, "data:image/"):
		raw = el.Src
	default:
		return nil, nil
	}
	img, err := decodeDataURL(raw)
	if err != nil {
		return nil, err
	}
	return StaticSurface{Image: img}, nil
}

var errUnsupportedDataURL = errors.New("unsupported data URL")

func decodeDataURL(raw string) (image.Image, error) {
	meta, payload, ok := strings.Cut(raw, ",")
	if !ok || !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
		return nil, errUnsupportedDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
