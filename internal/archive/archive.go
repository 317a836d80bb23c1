package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidnote/vidnote/internal/capture"
	"github.com/vidnote/vidnote/internal/database"
	"github.com/vidnote/vidnote/internal/overlay"
)

var ErrNotFound = errors.New("capture not found")

const defaultURLExpiry = time.Hour

// ObjectStore holds the encoded images.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	DownloadURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Record struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	TargetSeconds float64   `json:"targetSeconds"`
	StrategyID    string    `json:"strategyId"`
	SizeBytes     int64     `json:"sizeBytes"`
	CreatedAt     time.Time `json:"createdAt"`
	URL           string    `json:"url"`
}

// Archive persists captures: the PNG in object storage, the metadata in
// Postgres.
type Archive struct {
	db     database.DBTX
	store  ObjectStore
	expiry time.Duration
	logger *slog.Logger
}

func New(db database.DBTX, store ObjectStore, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{db: db, store: store, expiry: defaultURLExpiry, logger: logger}
}

func fileKey(userID, id string) string {
	return fmt.Sprintf("captures/%s/%s.png", userID, id)
}

func downloadName(title string, seconds float64) string {
	if title == "" {
		title = "capture"
	}
	return fmt.Sprintf("%s %s.png", overlay.Truncate(title, 60), overlay.FormatClock(seconds))
}

// Save uploads c and records it for userID.
func (a *Archive) Save(ctx context.Context, userID, source string, c capture.Capture) (Record, error) {
	key := fileKey(userID, c.ID)
	if err := a.store.Upload(ctx, key, c.PNG, "image/png"); err != nil {
		return Record{}, fmt.Errorf("store capture: %w", err)
	}

	var createdAt time.Time
	err := a.db.QueryRow(ctx,
		`INSERT INTO captures (id, user_id, source, title, target_seconds, strategy, file_key, size_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		c.ID, userID, source, c.Title, c.TargetSeconds, c.StrategyID, key, int64(len(c.PNG)),
	).Scan(&createdAt)
	if err != nil {
		if delErr := a.store.Delete(ctx, key); delErr != nil {
			a.logger.Warn("removing orphaned capture failed", "key", key, "error", delErr)
		}
		return Record{}, fmt.Errorf("record capture: %w", err)
	}

	rec := Record{
		ID:            c.ID,
		Source:        source,
		Title:         c.Title,
		TargetSeconds: c.TargetSeconds,
		StrategyID:    c.StrategyID,
		SizeBytes:     int64(len(c.PNG)),
		CreatedAt:     createdAt,
	}
	rec.URL, err = a.store.DownloadURL(ctx, key, downloadName(c.Title, c.TargetSeconds), a.expiry)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns the newest captures of userID first.
func (a *Archive) List(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := a.db.Query(ctx,
		`SELECT id, source, title, target_seconds, strategy, file_key, size_bytes, created_at
		 FROM captures WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r   Record
			key string
		)
		if err := rows.Scan(&r.ID, &r.Source, &r.Title, &r.TargetSeconds, &r.StrategyID, &key, &r.SizeBytes, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		r.URL, err = a.store.DownloadURL(ctx, key, downloadName(r.Title, r.TargetSeconds), a.expiry)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	return records, nil
}

// Delete removes one of userID's captures.
func (a *Archive) Delete(ctx context.Context, userID, id string) error {
	var key string
	err := a.db.QueryRow(ctx,
		`DELETE FROM captures WHERE id = $1 AND user_id = $2 RETURNING file_key`,
		id, userID,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	if err := a.store.Delete(ctx, key); err != nil {
		a.logger.Warn("deleting capture object failed", "key", key, "error", err)
	}
	return nil
}
