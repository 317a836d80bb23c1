package session

import (
	"image"
	"sync"

	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/player"
)

// container is the browser's latest report of the rendered player subtree.
type container struct {
	mu       sync.RWMutex
	markup   string
	bounds   image.Rectangle
	isolated bool
}

func (c *container) update(markup string, bounds image.Rectangle, isolated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markup = markup
	c.bounds = bounds
	c.isolated = isolated
}

func (c *container) Markup() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markup
}

func (c *container) Bounds() image.Rectangle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bounds
}

func (c *container) Isolated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isolated
}

func (c *container) empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.markup == "" && c.bounds.Empty()
}

type surfacer interface {
	Surface() capture.Surface
}

type target struct {
	widget    player.Widget
	container *container
}

func (t target) Surface() capture.Surface {
	if s, ok := t.widget.(surfacer); ok {
		return s.Surface()
	}
	return nil
}

func (t target) Container() capture.Container {
	if t.container.empty() {
		return nil
	}
	return t.container
}
