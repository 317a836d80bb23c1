package capture

import (
	"context"
	"fmt"

	"github.com/vidnote/vidnote/internal/overlay"
)

// ContainerRaster snapshots the container's on-screen region as composited.
func ContainerRaster(r Rasterizer) Strategy {
	return Strategy{
		ID:         StrategyContainerRaster,
		TitleLimit: overlay.DefaultTitleLimit,
		Attempt: func(ctx context.Context, target Target, _ Request) (*Result, error) {
			if r == nil {
				return nil, nil
			}
			c := target.Container()
			if c == nil || c.Bounds().Empty() {
				return nil, nil
			}
			if c.Isolated() {
				return nil, ErrIsolated
			}
			img, err := r.Rasterize(ctx, c.Bounds())
			if err != nil {
				return nil, fmt.Errorf("rasterize container: %w", err)
			}
			if img == nil {
				return nil, nil
			}
			return &Result{Image: img}, nil
		},
	}
}
