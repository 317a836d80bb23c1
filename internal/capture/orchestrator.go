package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vidnote/vidnote/internal/overlay"
)

// Orchestrator runs strategies in order and returns the first frame one
// produces. A Placeholder is always appended, so Capture never fails.
// Concurrent captures of the same request share one run.
type Orchestrator struct {
	strategies []Strategy
	logger     *slog.Logger
	group      singleflight.Group
	now        func() time.Time
}

func NewOrchestrator(logger *slog.Logger, strategies ...Strategy) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	chain := append([]Strategy(nil), strategies...)
	if len(chain) == 0 || chain[len(chain)-1].ID != StrategyPlaceholder {
		chain = append(chain, Placeholder())
	}
	return &Orchestrator{strategies: chain, logger: logger, now: time.Now}
}

// Strategies returns the IDs of the chain in trial order.
func (o *Orchestrator) Strategies() []string {
	ids := make([]string, len(o.strategies))
	for i, s := range o.strategies {
		ids[i] = s.ID
	}
	return ids
}

// Capture produces an overlaid frame for req. The run is detached from ctx
// cancellation so callers sharing it are not cut short by one leaving.
// Callers sharing a run share the frame but each gets its own capture ID.
func (o *Orchestrator) Capture(ctx context.Context, target Target, req Request) Capture {
	if target == nil {
		target = noTarget{}
	}
	v, _, shared := o.group.Do(req.key(), func() (any, error) {
		return o.run(context.WithoutCancel(ctx), target, req), nil
	})
	c := v.(Capture)
	if shared {
		c.ID = uuid.NewString()
		c.Attempts = append([]Attempt(nil), c.Attempts...)
	}
	return c
}

func (o *Orchestrator) run(ctx context.Context, target Target, req Request) Capture {
	attempts := make([]Attempt, 0, len(o.strategies))
	var (
		frame  *Result
		winner Strategy
	)

	for _, s := range o.strategies {
		start := o.now()
		res, err := o.try(ctx, s, target, req)
		a := Attempt{StrategyID: s.ID, Duration: o.now().Sub(start)}

		switch {
		case err != nil:
			a.Outcome = OutcomeFault
			a.Error = err.Error()
			o.logger.Warn("capture strategy failed", "strategy", s.ID, "target_seconds", req.TargetSeconds, "error", err)
		case res == nil || res.Image == nil || res.Image.Bounds().Empty():
			a.Outcome = OutcomeInapplicable
			o.logger.Debug("capture strategy inapplicable", "strategy", s.ID)
		default:
			a.Outcome = OutcomeOK
			frame, winner = res, s
		}
		attempts = append(attempts, a)
		if frame != nil {
			break
		}
	}

	if frame == nil {
		winner = Placeholder()
		frame = &Result{Image: RenderPlaceholder(req)}
	}

	img := overlay.Compose(frame.Image, overlay.LabelsFor(req.TargetSeconds, req.Title, winner.TitleLimit))
	data, err := overlay.EncodePNG(img)
	if err != nil {
		o.logger.Error("encoding capture failed", "strategy", winner.ID, "error", err)
		winner = Placeholder()
		data, _ = overlay.EncodePNG(RenderPlaceholder(req))
	}

	o.logger.Info("frame captured", "strategy", winner.ID, "target_seconds", req.TargetSeconds, "attempts", len(attempts))

	return Capture{
		ID:            uuid.NewString(),
		StrategyID:    winner.ID,
		TargetSeconds: req.TargetSeconds,
		Title:         req.Title,
		DataURL:       overlay.DataURL(data),
		PNG:           data,
		Attempts:      attempts,
		CapturedAt:    o.now().UTC(),
	}
}

func (o *Orchestrator) try(ctx context.Context, s Strategy, target Target, req Request) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	if s.Attempt == nil {
		return nil, nil
	}
	return s.Attempt(ctx, target, req)
}
