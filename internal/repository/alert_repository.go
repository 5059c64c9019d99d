package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// AlertStore defines the data access surface for the append-only alert log.
type AlertStore interface {
	// LoadKeysSince returns the dedup keys of every alert record whose
	// detected_at falls on or after the given instant.
	LoadKeysSince(ctx context.Context, since time.Time) ([]models.AlertKey, error)

	// Insert conditionally appends an alert record. The insert is a no-op when
	// a record with the same (subscriber, well, activity type) key already
	// exists inside the window starting at windowStart, or when a concurrent
	// run has already inserted the identical record. Returns whether a row was
	// actually written.
	Insert(ctx context.Context, rec models.AlertRecord, windowStart time.Time) (bool, error)
}

// alertRepository is the pgx-backed implementation of AlertStore.
type alertRepository struct {
	db *database.Database
}

// NewAlertRepository creates a new AlertStore backed by PostgreSQL.
func NewAlertRepository(db *database.Database) AlertStore {
	return &alertRepository{db: db}
}

func (r *alertRepository) LoadKeysSince(ctx context.Context, since time.Time) ([]models.AlertKey, error) {
	query := `
		SELECT subscriber_id, well_id, activity_type
		FROM alert_records
		WHERE detected_at >= $1
	`

	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert keys since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var keys []models.AlertKey

	for rows.Next() {
		var sub, well, activity string
		if err := rows.Scan(&sub, &well, &activity); err != nil {
			return nil, fmt.Errorf("failed to scan alert key row: %w", err)
		}
		keys = append(keys, models.AlertKey{
			Subscriber:   models.SubscriberID(sub),
			WellID:       models.WellID(well),
			ActivityType: models.ActivityType(activity),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert key rows: %w", err)
	}

	if keys == nil {
		keys = []models.AlertKey{}
	}

	return keys, nil
}

// Insert writes the record only when no record for the same key exists inside
// the window. The ON CONFLICT clause makes two scheduled runs racing on the
// same event converge to a single row instead of duplicating it.
func (r *alertRepository) Insert(ctx context.Context, rec models.AlertRecord, windowStart time.Time) (bool, error) {
	query := `
		INSERT INTO alert_records (id, subscriber_id, well_id, activity_type, severity, detected_at, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM alert_records
			WHERE subscriber_id = $2
			  AND well_id = $3
			  AND activity_type = $4
			  AND detected_at >= $8
		)
		ON CONFLICT (subscriber_id, well_id, activity_type, detected_at) DO NOTHING
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		rec.ID,
		string(rec.Subscriber),
		string(rec.WellID),
		string(rec.Activity),
		rec.Severity.String(),
		rec.DetectedAt,
		rec.CreatedAt,
		windowStart,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert record for %s/%s: %w", rec.Subscriber, rec.WellID, err)
	}

	return tag.RowsAffected() > 0, nil
}
