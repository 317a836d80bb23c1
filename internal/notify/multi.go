package notify

import (
	"context"
	"log/slog"

	"github.com/vidnote/vidnote/internal/archive"
)

// CaptureNotifier is told about captures that were archived.
type CaptureNotifier interface {
	CaptureArchived(ctx context.Context, userID string, rec archive.Record) error
}

var _ CaptureNotifier = (*Multi)(nil)

// Multi fans a notification out to every registered notifier. A failing
// notifier is logged and does not stop the others.
type Multi struct {
	notifiers []CaptureNotifier
	logger    *slog.Logger
}

func NewMulti(logger *slog.Logger, notifiers ...CaptureNotifier) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{notifiers: notifiers, logger: logger}
}

func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) CaptureArchived(ctx context.Context, userID string, rec archive.Record) error {
	for _, n := range m.notifiers {
		if err := n.CaptureArchived(ctx, userID, rec); err != nil {
			m.logger.Error("capture notification failed", "capture", rec.ID, "error", err)
		}
	}
	return nil
}
