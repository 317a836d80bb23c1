package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/vidnote/vidnote/internal/database"
	"github.com/vidnote/vidnote/internal/timesync"
)

// Store keeps the last written playback position per user and source.
type Store struct {
	db     database.DBTX
	logger *slog.Logger
}

func New(db database.DBTX) *Store {
	return &Store{db: db, logger: slog.Default()}
}

func (s *Store) Load(ctx context.Context, userID, source string) (float64, bool, error) {
	var pos float64
	err := s.db.QueryRow(ctx,
		`SELECT position_seconds FROM playback_progress WHERE user_id = $1 AND source = $2`,
		userID, source,
	).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load progress: %w", err)
	}
	return pos, true, nil
}

func (s *Store) Save(ctx context.Context, userID, source string, state timesync.PlaybackState) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO playback_progress (user_id, source, position_seconds, is_playing, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (user_id, source)
		 DO UPDATE SET position_seconds = EXCLUDED.position_seconds, is_playing = EXCLUDED.is_playing, updated_at = now()`,
		userID, source, state.PositionSeconds, state.IsPlaying,
	); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Follow saves each state received on states until ctx ends or states is
// closed. A state is skipped when its position and play flag match the last
// one saved. Failed saves are logged and retried with the next state.
func (s *Store) Follow(ctx context.Context, userID, source string, states <-chan timesync.PlaybackState) {
	var (
		last  timesync.PlaybackState
		saved bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok || ctx.Err() != nil {
				return
			}
			if saved && st.PositionSeconds == last.PositionSeconds && st.IsPlaying == last.IsPlaying {
				continue
			}
			if err := s.Save(ctx, userID, source, st); err != nil {
				s.logger.Warn("saving progress failed", "user", userID, "source", source, "error", err)
				continue
			}
			last, saved = st, true
		}
	}
}
