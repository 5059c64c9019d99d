package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// PendingStore defines the data access surface for the digest queue.
type PendingStore interface {
	// Enqueue appends one unprocessed pending notification.
	Enqueue(ctx context.Context, pn models.PendingNotification) error

	// FindUnprocessed lists every unprocessed pending notification for the
	// cadence, oldest first. Returns an empty slice when the queue is empty.
	FindUnprocessed(ctx context.Context, cadence models.Cadence) ([]models.PendingNotification, error)

	// MarkProcessed stamps processed_at on the given rows. Rows already
	// processed are left untouched; a pending notification transitions from
	// unprocessed to processed exactly once.
	MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// pendingRepository is the pgx-backed implementation of PendingStore.
type pendingRepository struct {
	db *database.Database
}

// NewPendingRepository creates a new PendingStore backed by PostgreSQL.
func NewPendingRepository(db *database.Database) PendingStore {
	return &pendingRepository{db: db}
}

func (r *pendingRepository) Enqueue(ctx context.Context, pn models.PendingNotification) error {
	summary, err := json.Marshal(pn.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal pending notification summary: %w", err)
	}

	query := `
		INSERT INTO pending_notifications (id, subscriber_id, email, cadence, summary, queued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.Pool.Exec(ctx, query,
		pn.ID,
		string(pn.Subscriber),
		pn.Email,
		string(pn.Cadence),
		summary,
		pn.QueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue pending notification for %s: %w", pn.Subscriber, err)
	}

	return nil
}

func (r *pendingRepository) FindUnprocessed(ctx context.Context, cadence models.Cadence) ([]models.PendingNotification, error) {
	query := `
		SELECT id, subscriber_id, email, cadence, summary, queued_at
		FROM pending_notifications
		WHERE cadence = $1
		  AND processed_at IS NULL
		ORDER BY queued_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, string(cadence))
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed %s notifications: %w", cadence, err)
	}
	defer rows.Close()

	var results []models.PendingNotification

	for rows.Next() {
		var pn models.PendingNotification
		var sub, cad string
		var summary []byte

		if err := rows.Scan(&pn.ID, &sub, &pn.Email, &cad, &summary, &pn.QueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending notification row: %w", err)
		}

		if err := json.Unmarshal(summary, &pn.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal summary for pending notification %s: %w", pn.ID, err)
		}

		pn.Subscriber = models.SubscriberID(sub)
		pn.Cadence = models.Cadence(cad)

		results = append(results, pn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending notification rows: %w", err)
	}

	if results == nil {
		results = []models.PendingNotification{}
	}

	return results, nil
}

func (r *pendingRepository) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE pending_notifications
		SET processed_at = $2
		WHERE id = ANY($1)
		  AND processed_at IS NULL
	`

	if _, err := r.db.Pool.Exec(ctx, query, ids, at); err != nil {
		return fmt.Errorf("failed to mark %d pending notifications processed: %w", len(ids), err)
	}

	return nil
}
