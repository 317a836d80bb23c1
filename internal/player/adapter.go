package player

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/vidnote/vidnote/internal/timesync"
)

// Syncer receives playback events.
type Syncer interface {
	Handle(ev timesync.Event) bool
}

// Adapter wraps a Widget with best-effort controls. Commands issued before
// the widget is ready are dropped and widget failures are logged, never
// returned. Every command that lands is forwarded to the Syncer.
type Adapter struct {
	widget Widget
	sync   Syncer
	logger *slog.Logger
}

func NewAdapter(widget Widget, sync Syncer, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{widget: widget, sync: sync, logger: logger}
}

func (a *Adapter) Widget() Widget { return a.widget }

func (a *Adapter) Ready() bool {
	ready := false
	_ = a.guard("ready", func() error {
		ready = a.widget != nil && a.widget.Ready()
		return nil
	})
	return ready
}

// SeekTo moves the playhead. Negative and NaN targets seek to 0; +Inf seeks
// to the end, or to 0 when the duration is unknown.
func (a *Adapter) SeekTo(ctx context.Context, seconds float64) {
	if !a.Ready() {
		a.logger.Debug("seek dropped, widget not ready", "seconds", seconds)
		return
	}
	switch {
	case math.IsNaN(seconds) || seconds < 0:
		seconds = 0
	case math.IsInf(seconds, 1):
		seconds = 0
		if d, ok := a.widget.(interface{ Duration() float64 }); ok && d.Duration() > 0 {
			seconds = d.Duration()
		}
	}
	if err := a.guard("seek", func() error { return a.widget.Seek(ctx, seconds) }); err != nil {
		return
	}
	a.emit(timesync.Seek(a.CurrentTime()))
}

// CurrentTime is the widget position, or 0 when it cannot be read.
func (a *Adapter) CurrentTime() float64 {
	if !a.Ready() {
		return 0
	}
	var pos float64
	err := a.guard("position", func() error {
		p, err := a.widget.Position()
		pos = p
		return err
	})
	if err != nil || math.IsNaN(pos) || pos < 0 {
		return 0
	}
	return pos
}

func (a *Adapter) Play() {
	if !a.Ready() {
		a.logger.Debug("play dropped, widget not ready")
		return
	}
	if err := a.guard("play", a.widget.Play); err != nil {
		return
	}
	a.emit(timesync.Play(a.CurrentTime()))
}

func (a *Adapter) Pause() {
	if !a.Ready() {
		a.logger.Debug("pause dropped, widget not ready")
		return
	}
	if err := a.guard("pause", a.widget.Pause); err != nil {
		return
	}
	a.emit(timesync.Pause(a.CurrentTime()))
}

func (a *Adapter) emit(ev timesync.Event) {
	if a.sync != nil {
		a.sync.Handle(ev)
	}
}

func (a *Adapter) guard(op string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			a.logger.Warn("widget call failed", "op", op, "error", err)
		}
	}()
	return fn()
}
