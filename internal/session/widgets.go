package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vidnote/vidnote/internal/player"
)

var ErrLocalDisabled = errors.New("local playback is not configured")

// WidgetFactory builds the widget for a source.
type WidgetFactory func(ctx context.Context, source string) (player.Widget, error)

// MediaOpener opens a local video for decoding.
type MediaOpener func(path string) (player.Media, error)

// NewWidgetFactory plays http(s) sources through an embed and everything
// else as a file under mediaDir.
func NewWidgetFactory(mediaDir string, open MediaOpener) WidgetFactory {
	return func(_ context.Context, source string) (player.Widget, error) {
		if player.IsRemote(source) {
			return player.NewEmbedWidget(strings.TrimSpace(source)), nil
		}
		if mediaDir == "" || open == nil {
			return nil, ErrLocalDisabled
		}
		path := ResolveLocal(mediaDir, source)
		media, err := open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", source, err)
		}
		return player.NewFileWidget(path, media), nil
	}
}

// ResolveLocal maps source to a path inside mediaDir. Traversal outside the
// directory is cleaned away.
func ResolveLocal(mediaDir, source string) string {
	source = strings.TrimPrefix(strings.TrimSpace(source), "file://")
	return filepath.Join(mediaDir, filepath.Clean("/"+source))
}
