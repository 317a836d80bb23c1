package capture

import (
	"context"
	"fmt"

	"github.com/vidnote/vidnote/internal/overlay"
)

// DirectSurface draws the widget's own surface when it exposes one.
func DirectSurface() Strategy {
	return Strategy{
		ID:         StrategyDirectSurface,
		TitleLimit: overlay.DefaultTitleLimit,
		Attempt:    attemptDirect,
	}
}

func attemptDirect(ctx context.Context, target Target, req Request) (*Result, error) {
	s := target.Surface()
	if s == nil {
		return nil, nil
	}
	if w, h := s.Size(); w <= 0 || h <= 0 {
		return nil, nil
	}
	img, err := s.Frame(ctx, req.TargetSeconds)
	if err != nil {
		return nil, fmt.Errorf("read surface frame: %w", err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}
	return &Result{Image: img}, nil
}
