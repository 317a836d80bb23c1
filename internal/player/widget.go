package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrNotReady = errors.New("widget not ready")

// Widget is a mounted media player.
type Widget interface {
	Ready() bool
	Position() (float64, error)
	Seek(ctx context.Context, seconds float64) error
	Play() error
	Pause() error
	Close() error
}

// IsRemote reports whether source should be played through an embed rather
// than opened as a local file.
func IsRemote(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// clock models a playhead that advances with wall time while playing.
type clock struct {
	mu       sync.Mutex
	now      func() time.Time
	base     float64
	since    time.Time
	playing  bool
	duration float64
}

func newClock(duration float64) *clock {
	return &clock{now: time.Now, duration: duration}
}

func (c *clock) position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *clock) positionLocked() float64 {
	p := c.base
	if c.playing {
		p += c.now().Sub(c.since).Seconds()
	}
	if c.duration > 0 && p > c.duration {
		p = c.duration
	}
	return p
}

func (c *clock) seek(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if c.duration > 0 && seconds > c.duration {
		seconds = c.duration
	}
	c.base = seconds
	c.since = c.now()
}

func (c *clock) play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		c.since = c.now()
		c.playing = true
	}
}

func (c *clock) pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		c.base = c.positionLocked()
		c.playing = false
	}
}

func (c *clock) isPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}
