package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"
)

const (
	StrategyDirectSurface   = "direct-surface"
	StrategyDeepSearch      = "deep-search"
	StrategyContainerRaster = "container-raster"
	StrategyRemoteThumbnail = "remote-thumbnail"
	StrategyPlaceholder     = "placeholder"
)

var ErrIsolated = errors.New("container holds isolated content")

// Request describes the frame a caller wants.
type Request struct {
	TargetSeconds float64
	Title         string
	Source        string
}

func (r Request) key() string {
	return fmt.Sprintf("%d|%s|%s", int64(math.Floor(r.TargetSeconds*100)), r.Title, r.Source)
}

// Result is the raw frame a strategy produced, before the overlay is applied.
type Result struct {
	Image image.Image
}

// AttemptFunc tries one capture technique. A nil result with a nil error
// means the technique does not apply to this target.
type AttemptFunc func(ctx context.Context, target Target, req Request) (*Result, error)

// Strategy is a named capture technique. TitleLimit caps the overlay title
// for frames it produces.
type Strategy struct {
	ID         string
	TitleLimit int
	Attempt    AttemptFunc
}

type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeInapplicable Outcome = "inapplicable"
	OutcomeFault        Outcome = "fault"
)

// Attempt records how one strategy fared during a capture.
type Attempt struct {
	StrategyID string        `json:"strategyId"`
	Outcome    Outcome       `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"durationNs"`
}

// Capture is a finished, overlaid frame.
type Capture struct {
	ID            string    `json:"id"`
	StrategyID    string    `json:"strategyId"`
	TargetSeconds float64   `json:"targetSeconds"`
	Title         string    `json:"title"`
	DataURL       string    `json:"dataUrl"`
	PNG           []byte    `json:"-"`
	Attempts      []Attempt `json:"attempts"`
	CapturedAt    time.Time `json:"capturedAt"`
}
