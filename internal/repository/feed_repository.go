package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// FeedStatusStore defines the data access surface for feed freshness state.
type FeedStatusStore interface {
	// Get fetches the stored status for a feed.
	// Returns nil, nil when the feed has never been observed.
	Get(ctx context.Context, feed models.FeedType) (*models.FeedStatus, error)

	// RecordCheck stamps the last-checked time for a feed, creating the row on
	// first observation.
	RecordCheck(ctx context.Context, feed models.FeedType, at time.Time) error

	// RecordNewRecords advances the last-new-record baseline for a feed.
	RecordNewRecords(ctx context.Context, feed models.FeedType, at time.Time) error
}

// feedStatusRepository is the pgx-backed implementation of FeedStatusStore.
type feedStatusRepository struct {
	db *database.Database
}

// NewFeedStatusRepository creates a new FeedStatusStore backed by PostgreSQL.
func NewFeedStatusRepository(db *database.Database) FeedStatusStore {
	return &feedStatusRepository{db: db}
}

func (r *feedStatusRepository) Get(ctx context.Context, feed models.FeedType) (*models.FeedStatus, error) {
	query := `
		SELECT feed, last_checked_at, last_new_record
		FROM feed_status
		WHERE feed = $1
	`

	var status models.FeedStatus
	var feedName string

	err := r.db.Pool.QueryRow(ctx, query, string(feed)).Scan(
		&feedName,
		&status.LastCheckedAt,
		&status.LastNewRecord,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query feed status for %s: %w", feed, err)
	}

	status.Feed = models.FeedType(feedName)

	return &status, nil
}

func (r *feedStatusRepository) RecordCheck(ctx context.Context, feed models.FeedType, at time.Time) error {
	query := `
		INSERT INTO feed_status (feed, last_checked_at)
		VALUES ($1, $2)
		ON CONFLICT (feed) DO UPDATE SET last_checked_at = EXCLUDED.last_checked_at
	`

	if _, err := r.db.Pool.Exec(ctx, query, string(feed), at); err != nil {
		return fmt.Errorf("failed to record check for feed %s: %w", feed, err)
	}

	return nil
}

func (r *feedStatusRepository) RecordNewRecords(ctx context.Context, feed models.FeedType, at time.Time) error {
	query := `
		INSERT INTO feed_status (feed, last_checked_at, last_new_record)
		VALUES ($1, $2, $2)
		ON CONFLICT (feed) DO UPDATE SET last_new_record = EXCLUDED.last_new_record
	`

	if _, err := r.db.Pool.Exec(ctx, query, string(feed), at); err != nil {
		return fmt.Errorf("failed to record new records for feed %s: %w", feed, err)
	}

	return nil
}
