package repository

import (
	"context"
	"fmt"

	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// TrackedWellStore defines the data access surface for tracked wells.
type TrackedWellStore interface {
	// FindActiveByWell finds all active tracked-well records for the given
	// well identifier. Returns an empty slice if none exist (not an error).
	FindActiveByWell(ctx context.Context, well models.WellID) ([]models.TrackedWell, error)
}

// trackedWellRepository is the pgx-backed implementation of TrackedWellStore.
type trackedWellRepository struct {
	db *database.Database
}

// NewTrackedWellRepository creates a new TrackedWellStore backed by PostgreSQL.
func NewTrackedWellRepository(db *database.Database) TrackedWellStore {
	return &trackedWellRepository{db: db}
}

func (r *trackedWellRepository) FindActiveByWell(ctx context.Context, well models.WellID) ([]models.TrackedWell, error) {
	query := `
		SELECT
			COALESCE(owner_subscriber_id, ''),
			COALESCE(owner_org_id, ''),
			well_id,
			active
		FROM tracked_wells
		WHERE active = TRUE
		  AND well_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, string(well))
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked wells for %s: %w", well, err)
	}
	defer rows.Close()

	var results []models.TrackedWell

	for rows.Next() {
		var w models.TrackedWell
		var owner, orgOwner, wellID string

		if err := rows.Scan(&owner, &orgOwner, &wellID, &w.Active); err != nil {
			return nil, fmt.Errorf("failed to scan tracked well row: %w", err)
		}

		w.Owner = models.SubscriberID(owner)
		w.OrgOwner = models.OrganizationID(orgOwner)
		w.WellID = models.WellID(wellID)

		results = append(results, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracked well rows: %w", err)
	}

	if results == nil {
		results = []models.TrackedWell{}
	}

	return results, nil
}
