package player

import (
	"context"
	"sync/atomic"
)

// EmbedWidget stands in for a hosted player running in the browser. The
// browser marks it ready and reports positions; commands move the modelled
// playhead, which the browser follows through the playback stream.
type EmbedWidget struct {
	*clock
	url   string
	ready atomic.Bool
}

func NewEmbedWidget(url string) *EmbedWidget {
	return &EmbedWidget{clock: newClock(0), url: url}
}

func (w *EmbedWidget) URL() string { return w.url }

func (w *EmbedWidget) MarkReady() { w.ready.Store(true) }

func (w *EmbedWidget) Ready() bool { return w.ready.Load() }

func (w *EmbedWidget) Playing() bool { return w.isPlaying() }

// Report records a position observed by the browser.
func (w *EmbedWidget) Report(seconds float64, playing bool) {
	if playing {
		w.seek(seconds)
		w.play()
		return
	}
	w.pause()
	w.seek(seconds)
}

func (w *EmbedWidget) Position() (float64, error) {
	if !w.Ready() {
		return 0, ErrNotReady
	}
	return w.position(), nil
}

func (w *EmbedWidget) Seek(_ context.Context, seconds float64) error {
	if !w.Ready() {
		return ErrNotReady
	}
	w.seek(seconds)
	return nil
}

func (w *EmbedWidget) Play() error {
	if !w.Ready() {
		return ErrNotReady
	}
	w.play()
	return nil
}

func (w *EmbedWidget) Pause() error {
	if !w.Ready() {
		return ErrNotReady
	}
	w.pause()
	return nil
}

func (w *EmbedWidget) Close() error {
	w.ready.Store(false)
	return nil
}
