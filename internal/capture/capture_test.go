package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vidnote/vidnote/internal/overlay"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

type fakeSurface struct {
	w, h    int
	decoded atomic.Int64
	img     image.Image
	err     error
}

func (s *fakeSurface) Size() (int, int)   { return s.w, s.h }
func (s *fakeSurface) FramesDecoded() int { return int(s.decoded.Load()) }
func (s *fakeSurface) Frame(context.Context, float64) (image.Image, error) {
	return s.img, s.err
}

type fakeContainer struct {
	markup   string
	bounds   image.Rectangle
	isolated bool
}

func (c fakeContainer) Markup() string          { return c.markup }
func (c fakeContainer) Bounds() image.Rectangle { return c.bounds }
func (c fakeContainer) Isolated() bool          { return c.isolated }

type fakeTarget struct {
	surface   Surface
	container Container
}

func (t fakeTarget) Surface() Surface     { return t.surface }
func (t fakeTarget) Container() Container { return t.container }

type fakeRasterizer struct {
	img    image.Image
	err    error
	called bool
}

func (r *fakeRasterizer) Rasterize(context.Context, image.Rectangle) (image.Image, error) {
	r.called = true
	return r.img, r.err
}

func decodeCapture(t *testing.T, c Capture) image.Image {
	t.Helper()
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(c.DataURL, prefix) {
		t.Fatalf("unexpected data URL prefix in %q", c.DataURL[:20])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(c.DataURL, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	if !bytes.Equal(raw, c.PNG) {
		t.Fatal("data URL and PNG bytes disagree")
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func TestDirectSurfaceWins(t *testing.T) {
	surface := &fakeSurface{w: 320, h: 180, img: solid(320, 180, color.White)}
	surface.decoded.Store(1)
	raster := &fakeRasterizer{img: solid(10, 10, color.Black)}

	o := NewOrchestrator(quietLogger(), DirectSurface(), DeepSearch(DeepSearchOptions{}), ContainerRaster(raster))
	c := o.Capture(context.Background(), fakeTarget{surface: surface, container: fakeContainer{bounds: image.Rect(0, 0, 10, 10)}}, Request{TargetSeconds: 5, Title: "Local"})

	if c.StrategyID != StrategyDirectSurface {
		t.Fatalf("expected direct-surface, got %q", c.StrategyID)
	}
	if raster.called {
		t.Error("later strategies should not run after a success")
	}
	if len(c.Attempts) != 1 || c.Attempts[0].Outcome != OutcomeOK {
		t.Errorf("unexpected attempts %+v", c.Attempts)
	}
	if img := decodeCapture(t, c); img.Bounds().Dx() != 320 {
		t.Errorf("expected 320px wide capture, got %d", img.Bounds().Dx())
	}
	if c.ID == "" || c.CapturedAt.IsZero() {
		t.Error("expected id and timestamp to be set")
	}
}

func TestDirectSurfaceFaultFallsThrough(t *testing.T) {
	surface := &fakeSurface{w: 320, h: 180, err: errors.New("decoder exploded")}
	raster := &fakeRasterizer{img: solid(64, 36, color.Black)}

	o := NewOrchestrator(quietLogger(), DirectSurface(), ContainerRaster(raster))
	c := o.Capture(context.Background(), fakeTarget{surface: surface, container: fakeContainer{bounds: image.Rect(0, 0, 64, 36)}}, Request{TargetSeconds: 1})

	if c.StrategyID != StrategyContainerRaster {
		t.Fatalf("expected container-raster, got %q", c.StrategyID)
	}
	if c.Attempts[0].Outcome != OutcomeFault || !strings.Contains(c.Attempts[0].Error, "decoder exploded") {
		t.Errorf("expected recorded fault, got %+v", c.Attempts[0])
	}
}

func TestPanickingStrategyIsContained(t *testing.T) {
	boom := Strategy{ID: "boom", Attempt: func(context.Context, Target, Request) (*Result, error) {
		panic("unexpected widget shape")
	}}
	c := NewOrchestrator(quietLogger(), boom).Capture(context.Background(), nil, Request{})

	if c.StrategyID != StrategyPlaceholder {
		t.Fatalf("expected placeholder, got %q", c.StrategyID)
	}
	if c.Attempts[0].Outcome != OutcomeFault {
		t.Errorf("expected panic recorded as fault, got %+v", c.Attempts[0])
	}
	decodeCapture(t, c)
}

func TestPlaceholderForZeroRequest(t *testing.T) {
	o := NewOrchestrator(quietLogger())
	c := o.Capture(context.Background(), nil, Request{})

	if c.StrategyID != StrategyPlaceholder {
		t.Fatalf("expected placeholder, got %q", c.StrategyID)
	}
	img := decodeCapture(t, c)
	if img.Bounds() != image.Rect(0, 0, PlaceholderWidth, PlaceholderHeight) {
		t.Errorf("unexpected placeholder bounds %v", img.Bounds())
	}
}

func TestPlaceholderIsNeverNil(t *testing.T) {
	s := Placeholder()
	for _, req := range []Request{{}, {TargetSeconds: 3725.5, Title: strings.Repeat("long ", 30)}, {TargetSeconds: -1}} {
		res, err := s.Attempt(context.Background(), noTarget{}, req)
		if err != nil || res == nil || res.Image == nil {
			t.Fatalf("placeholder failed for %+v: %v", req, err)
		}
	}
}

func TestNewOrchestratorAppendsPlaceholderOnce(t *testing.T) {
	ids := NewOrchestrator(nil, DirectSurface(), Placeholder()).Strategies()
	if len(ids) != 2 || ids[1] != StrategyPlaceholder {
		t.Errorf("unexpected chain %v", ids)
	}
	ids = NewOrchestrator(nil, DirectSurface()).Strategies()
	if ids[len(ids)-1] != StrategyPlaceholder {
		t.Errorf("expected placeholder appended, got %v", ids)
	}
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func samePixels(a, b image.Image) bool {
	if a.Bounds().Size() != b.Bounds().Size() {
		return false
	}
	ab, bb := a.Bounds(), b.Bounds()
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, g1, b1, a1 := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, g2, b2, a2 := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				return false
			}
		}
	}
	return true
}

func TestRemoteThumbnailFallsBackThroughTiers(t *testing.T) {
	thumb := encodeJPEG(t, solid(480, 360, color.RGBA{R: 200, A: 255}))
	var requested []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Path)
		mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/maxresdefault.jpg") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(thumb)
	}))
	defer srv.Close()

	o := NewOrchestrator(quietLogger(),
		DirectSurface(),
		DeepSearch(DeepSearchOptions{}),
		ContainerRaster(nil),
		RemoteThumbnail(srv.Client(), YouTube{BaseURL: srv.URL}),
	)
	c := o.Capture(context.Background(), fakeTarget{}, Request{
		TargetSeconds: 90,
		Title:         "Intro to Vectors",
		Source:        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	})

	if c.StrategyID != StrategyRemoteThumbnail {
		t.Fatalf("expected remote-thumbnail, got %q (attempts %+v)", c.StrategyID, c.Attempts)
	}
	if len(requested) != 2 || requested[0] != "/vi/dQw4w9WgXcQ/maxresdefault.jpg" || requested[1] != "/vi/dQw4w9WgXcQ/sddefault.jpg" {
		t.Errorf("unexpected tier order %v", requested)
	}
	got := decodeCapture(t, c)
	if got.Bounds().Dx() != 480 {
		t.Errorf("expected thumbnail dimensions, got %v", got.Bounds())
	}
	decoded, err := jpeg.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatal(err)
	}
	want := overlay.Compose(markApproximate(decoded), overlay.LabelsFor(90, "Intro to Vectors", overlay.DefaultTitleLimit))
	if !samePixels(got, want) {
		t.Error("expected the approximate thumbnail stamped with 1:30 and the title")
	}
	wrongClock := overlay.Compose(markApproximate(decoded), overlay.LabelsFor(0, "Intro to Vectors", overlay.DefaultTitleLimit))
	if samePixels(got, wrongClock) {
		t.Error("capture should not carry the 0:00 label")
	}
	for _, a := range c.Attempts[:3] {
		if a.Outcome != OutcomeInapplicable {
			t.Errorf("expected %s inapplicable, got %s", a.StrategyID, a.Outcome)
		}
	}
}

func TestRemoteThumbnailAllTiersMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := RemoteThumbnail(srv.Client(), YouTube{BaseURL: srv.URL})
	res, err := s.Attempt(context.Background(), noTarget{}, Request{Source: "https://youtu.be/dQw4w9WgXcQ"})
	if res != nil {
		t.Fatal("expected no result")
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected wrapped 404, got %v", err)
	}
}

func TestRemoteThumbnailUnknownSource(t *testing.T) {
	s := RemoteThumbnail(nil)
	res, err := s.Attempt(context.Background(), noTarget{}, Request{Source: "/videos/lecture.mp4"})
	if res != nil || err != nil {
		t.Errorf("expected inapplicable, got %v, %v", res, err)
	}
}

func TestYouTubeVideoID(t *testing.T) {
	tests := []struct {
		source string
		want   string
		ok     bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", "", false},
		{"https://www.youtube.com/watch?v=short", "", false},
		{"file:///tmp/a.mp4", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		got, ok := YouTube{}.VideoID(tt.source)
		if got != tt.want || ok != tt.ok {
			t.Errorf("VideoID(%q) = %q, %v; want %q, %v", tt.source, got, ok, tt.want, tt.ok)
		}
	}
}

func TestContainerRasterIsolated(t *testing.T) {
	raster := &fakeRasterizer{img: solid(4, 4, color.Black)}
	s := ContainerRaster(raster)
	_, err := s.Attempt(context.Background(), fakeTarget{container: fakeContainer{bounds: image.Rect(0, 0, 4, 4), isolated: true}}, Request{})
	if !errors.Is(err, ErrIsolated) {
		t.Errorf("expected ErrIsolated, got %v", err)
	}
	if raster.called {
		t.Error("isolated containers must not be rasterized")
	}
}

func TestContainerRasterNoBounds(t *testing.T) {
	s := ContainerRaster(&fakeRasterizer{})
	res, err := s.Attempt(context.Background(), fakeTarget{container: fakeContainer{}}, Request{})
	if res != nil || err != nil {
		t.Errorf("expected inapplicable, got %v, %v", res, err)
	}
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestFindSurfaces(t *testing.T) {
	markup := `<div class="player">
		<iframe src="https://www.youtube.com/embed/x"></iframe>
		<video width="0" src="hidden.mp4"></video>
		<video><source src="lecture.mp4" type="video/mp4"></video>
		<canvas width="320" height="180" data-frame="data:image/png;base64,AAAA"></canvas>
		<img src="poster.jpg" width="640px">
	</div>`
	els, err := FindSurfaces(markup)
	if err != nil {
		t.Fatal(err)
	}
	if len(els) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %+v", len(els), els)
	}
	if els[0].Tag != "video" || els[0].Src != "lecture.mp4" {
		t.Errorf("unexpected video candidate %+v", els[0])
	}
	if els[1].Tag != "canvas" || els[1].Width != 320 || els[1].Height != 180 {
		t.Errorf("unexpected canvas candidate %+v", els[1])
	}
	if els[2].Tag != "img" || els[2].Width != 640 {
		t.Errorf("unexpected img candidate %+v", els[2])
	}
}

func TestDeepSearchFindsNestedCanvas(t *testing.T) {
	frame := pngDataURL(t, solid(200, 100, color.RGBA{G: 255, A: 255}))
	target := fakeTarget{container: fakeContainer{
		markup: `<div><div class="shadow"><canvas width="200" height="100" data-frame="` + frame + `"></canvas></div></div>`,
	}}

	c := NewOrchestrator(quietLogger(), DirectSurface(), DeepSearch(DeepSearchOptions{})).
		Capture(context.Background(), target, Request{TargetSeconds: 12})

	if c.StrategyID != StrategyDeepSearch {
		t.Fatalf("expected deep-search, got %q (attempts %+v)", c.StrategyID, c.Attempts)
	}
	if img := decodeCapture(t, c); img.Bounds().Dx() != 200 {
		t.Errorf("expected 200px capture, got %v", img.Bounds())
	}
}

type stubResolver struct{ surface Surface }

func (r stubResolver) Resolve(context.Context, Element) (Surface, error) { return r.surface, nil }

func TestDeepSearchWaitsForDecodedFrame(t *testing.T) {
	surface := &fakeSurface{w: 64, h: 64, img: solid(64, 64, color.White)}
	go func() {
		time.Sleep(30 * time.Millisecond)
		surface.decoded.Store(1)
	}()

	s := DeepSearch(DeepSearchOptions{Resolver: stubResolver{surface}, PollInterval: 5 * time.Millisecond, ReadyTimeout: 2 * time.Second})
	res, err := s.Attempt(context.Background(), fakeTarget{container: fakeContainer{markup: `<video src="a.mp4"></video>`}}, Request{})
	if err != nil || res == nil {
		t.Fatalf("expected a frame once decoded, got %v, %v", res, err)
	}
}

func TestDeepSearchGivesUpAfterTimeout(t *testing.T) {
	surface := &fakeSurface{w: 64, h: 64}
	s := DeepSearch(DeepSearchOptions{Resolver: stubResolver{surface}, PollInterval: 5 * time.Millisecond, ReadyTimeout: 40 * time.Millisecond})

	start := time.Now()
	res, err := s.Attempt(context.Background(), fakeTarget{container: fakeContainer{markup: `<video src="a.mp4"></video>`}}, Request{})
	if res != nil || err != nil {
		t.Errorf("expected inapplicable, got %v, %v", res, err)
	}
	if time.Since(start) > time.Second {
		t.Error("readiness wait should be bounded")
	}
}

type recordingResolver struct {
	ctxs []context.Context
	els  []Element
}

func (r *recordingResolver) Resolve(ctx context.Context, el Element) (Surface, error) {
	r.ctxs = append(r.ctxs, ctx)
	r.els = append(r.els, el)
	return nil, nil
}

func TestDeepSearchEndsResolverWorkOnReturn(t *testing.T) {
	r := &recordingResolver{}
	s := DeepSearch(DeepSearchOptions{Resolver: r})
	res, err := s.Attempt(context.Background(), fakeTarget{container: fakeContainer{markup: `<video src="https://cdn.example.com/a.mp4"></video>`}}, Request{TargetSeconds: 37.8})
	if res != nil || err != nil {
		t.Fatalf("expected inapplicable, got %v, %v", res, err)
	}
	if len(r.ctxs) != 1 {
		t.Fatalf("expected one resolve call, got %d", len(r.ctxs))
	}
	if r.ctxs[0].Err() == nil {
		t.Error("resolver context should be cancelled once the attempt returns")
	}
	if r.els[0].At != 37.8 {
		t.Errorf("expected requested time on the element, got %v", r.els[0].At)
	}
}

func TestDataURLResolverRejectsGarbage(t *testing.T) {
	_, err := DataURLResolver{}.Resolve(context.Background(), Element{Tag: "canvas", Frame: "data:image/png;base64,!!!"})
	if err == nil {
		t.Error("expected decode error")
	}
	s, err := DataURLResolver{}.Resolve(context.Background(), Element{Tag: "video", Src: "a.mp4"})
	if s != nil || err != nil {
		t.Errorf("expected unhandled element, got %v, %v", s, err)
	}
}

func TestConcurrentCapturesForDifferentTargets(t *testing.T) {
	o := NewOrchestrator(quietLogger())
	var wg sync.WaitGroup
	results := make([]Capture, 2)
	for i, target := range []float64{10, 20} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = o.Capture(context.Background(), nil, Request{TargetSeconds: target, Title: "Parallel"})
		}()
	}
	wg.Wait()

	if results[0].TargetSeconds != 10 || results[1].TargetSeconds != 20 {
		t.Errorf("results crossed over: %v, %v", results[0].TargetSeconds, results[1].TargetSeconds)
	}
	if bytes.Equal(results[0].PNG, results[1].PNG) {
		t.Error("different targets should render different frames")
	}
}

func TestConcurrentIdenticalCapturesShareOneRun(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	slow := Strategy{ID: "slow", Attempt: func(context.Context, Target, Request) (*Result, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return &Result{Image: solid(8, 8, color.White)}, nil
	}}
	o := NewOrchestrator(quietLogger(), slow)
	req := Request{TargetSeconds: 42, Title: "Same"}

	var wg sync.WaitGroup
	results := make([]Capture, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = o.Capture(context.Background(), nil, req)
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = o.Capture(context.Background(), nil, req)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one strategy run, got %d", calls.Load())
	}
	if !bytes.Equal(results[0].PNG, results[1].PNG) || results[0].StrategyID != results[1].StrategyID {
		t.Error("coalesced callers should share the same frame")
	}
	if results[0].ID == results[1].ID {
		t.Errorf("coalesced callers need distinct capture ids, both got %s", results[0].ID)
	}
	results[0].Attempts[0].Outcome = OutcomeFault
	if results[1].Attempts[0].Outcome != OutcomeOK {
		t.Error("attempt traces of coalesced callers should not alias")
	}
}

func TestCaptureSurvivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewOrchestrator(quietLogger()).Capture(ctx, nil, Request{TargetSeconds: 3})
	decodeCapture(t, c)
}
