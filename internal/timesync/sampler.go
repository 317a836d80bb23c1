package timesync

import (
	"context"
	"time"
)

const DefaultInterval = time.Second

// Source reports the current playback position.
type Source interface {
	CurrentTime() float64
}

// Sampler feeds periodic ticks from a Source into a Policy.
type Sampler struct {
	source   Source
	policy   *Policy
	interval time.Duration
}

func NewSampler(source Source, policy *Policy, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{source: source, policy: policy, interval: interval}
}

// Run samples until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.policy.Handle(Tick(s.source.CurrentTime()))
		}
	}
}
