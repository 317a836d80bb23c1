package timesync

import (
	"math"
	"sync"
)

const DefaultThreshold = 10.0

// Policy decides which playback events are written to the shared Store.
// Small drift while playing is tolerated; play, pause and seek transitions
// are always written. Written positions are floored to whole seconds.
type Policy struct {
	mu        sync.Mutex
	store     *Store
	threshold float64
	playing   bool
	written   bool
	last      float64
}

func NewPolicy(store *Store, threshold float64) *Policy {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if store == nil {
		store = NewStore()
	}
	return &Policy{store: store, threshold: threshold}
}

func (p *Policy) Store() *Store {
	return p.store
}

// Handle applies ev and reports whether the shared state was written.
func (p *Policy) Handle(ev Event) bool {
	pos := normalize(ev.Position)

	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case KindPlay:
		p.playing = true
		return p.writeLocked(pos)
	case KindPause:
		p.playing = false
		return p.writeLocked(pos)
	case KindSeek:
		return p.writeLocked(pos)
	case KindTick:
		if p.playing {
			if !p.written || math.Abs(pos-p.last) >= p.threshold {
				return p.writeLocked(pos)
			}
			p.store.report(pos)
			return false
		}
		// A paused position that moves is a scrub.
		if math.Floor(pos) != p.last {
			return p.writeLocked(pos)
		}
		p.store.report(pos)
		return false
	}
	return false
}

func (p *Policy) writeLocked(pos float64) bool {
	p.last = math.Floor(pos)
	p.written = true
	p.store.set(PlaybackState{
		PositionSeconds:     p.last,
		IsPlaying:           p.playing,
		LastReportedSeconds: pos,
	})
	return true
}

func normalize(pos float64) float64 {
	if math.IsNaN(pos) || math.IsInf(pos, 0) || pos < 0 {
		return 0
	}
	return pos
}
