package control

import (
	"context"
	"errors"
	"sync"

	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/player"
)

// ErrNoHandle is returned by captures when no player is mounted.
var ErrNoHandle = errors.New("no player mounted")

// Capturer produces overlaid frames.
type Capturer interface {
	Capture(ctx context.Context, target capture.Target, req capture.Request) capture.Capture
}

// Handle is the control surface of one mounted, ready player.
type Handle struct {
	adapter  *player.Adapter
	capturer Capturer
	target   capture.Target
	title    string
	source   string
}

func NewHandle(adapter *player.Adapter, capturer Capturer, target capture.Target, title, source string) *Handle {
	return &Handle{adapter: adapter, capturer: capturer, target: target, title: title, source: source}
}

func (h *Handle) Title() string  { return h.title }
func (h *Handle) Source() string { return h.source }

func (h *Handle) SeekTo(ctx context.Context, seconds float64) { h.adapter.SeekTo(ctx, seconds) }
func (h *Handle) CurrentTime() float64                        { return h.adapter.CurrentTime() }
func (h *Handle) Play()                                       { h.adapter.Play() }
func (h *Handle) Pause()                                      { h.adapter.Pause() }

// CaptureFrame captures the frame at the current playback position.
func (h *Handle) CaptureFrame(ctx context.Context) capture.Capture {
	return h.CaptureAt(ctx, h.CurrentTime())
}

func (h *Handle) CaptureAt(ctx context.Context, seconds float64) capture.Capture {
	return h.capturer.Capture(ctx, h.target, capture.Request{
		TargetSeconds: seconds,
		Title:         h.title,
		Source:        h.source,
	})
}

// Registry holds the current Handle. Setting a handle replaces the previous
// one outright. Any goroutine may read it.
type Registry struct {
	mu      sync.RWMutex
	current *Handle
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Set(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = h
}

// Clear empties the slot if h is still the current handle. A stale owner
// clearing after a remount leaves the newer handle in place.
func (r *Registry) Clear(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != h {
		return false
	}
	r.current = nil
	return true
}

func (r *Registry) Current() *Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Registry) SeekTo(ctx context.Context, seconds float64) {
	if h := r.Current(); h != nil {
		h.SeekTo(ctx, seconds)
	}
}

func (r *Registry) CurrentTime() float64 {
	if h := r.Current(); h != nil {
		return h.CurrentTime()
	}
	return 0
}

func (r *Registry) Play() {
	if h := r.Current(); h != nil {
		h.Play()
	}
}

func (r *Registry) Pause() {
	if h := r.Current(); h != nil {
		h.Pause()
	}
}

// Capture captures the current frame of the mounted player.
func (r *Registry) Capture(ctx context.Context) (capture.Capture, error) {
	h := r.Current()
	if h == nil {
		return capture.Capture{}, ErrNoHandle
	}
	return h.CaptureFrame(ctx), nil
}

// CaptureFrame is Capture reduced to the encoded image.
func (r *Registry) CaptureFrame(ctx context.Context) (string, error) {
	c, err := r.Capture(ctx)
	if err != nil {
		return "", err
	}
	return c.DataURL, nil
}
