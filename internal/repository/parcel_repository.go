package repository

import (
	"context"
	"fmt"

	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// ParcelStore defines the data access surface for tracked parcels.
type ParcelStore interface {
	// FindActiveByLocationKeys finds all active parcels whose canonical
	// location key is in keys. The whole candidate neighborhood of an event is
	// resolved in this one batched call rather than one query per section.
	// Returns an empty slice if no parcels are found (not an error).
	FindActiveByLocationKeys(ctx context.Context, keys []string) ([]models.Parcel, error)
}

// parcelRepository is the pgx-backed implementation of ParcelStore.
type parcelRepository struct {
	db *database.Database
}

// NewParcelRepository creates a new ParcelStore backed by PostgreSQL.
func NewParcelRepository(db *database.Database) ParcelStore {
	return &parcelRepository{db: db}
}

// FindActiveByLocationKeys queries parcels by canonical location key using a
// single ANY($1) condition across the whole neighborhood.
func (r *parcelRepository) FindActiveByLocationKeys(ctx context.Context, keys []string) ([]models.Parcel, error) {
	if len(keys) == 0 {
		return []models.Parcel{}, nil
	}

	query := `
		SELECT
			id,
			COALESCE(owner_subscriber_id, ''),
			COALESCE(owner_org_id, ''),
			section,
			township,
			range_ord,
			meridian,
			monitor_adjacent,
			active
		FROM parcels
		WHERE active = TRUE
		  AND location_key = ANY($1)
	`

	rows, err := r.db.Pool.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query parcels by location keys: %w", err)
	}
	defer rows.Close()

	var results []models.Parcel

	for rows.Next() {
		var p models.Parcel
		var owner, orgOwner, meridian string

		err := rows.Scan(
			&p.ID,
			&owner,
			&orgOwner,
			&p.Location.Section,
			&p.Location.Township,
			&p.Location.Range,
			&meridian,
			&p.MonitorAdjacent,
			&p.Active,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parcel row: %w", err)
		}

		p.Owner = models.SubscriberID(owner)
		p.OrgOwner = models.OrganizationID(orgOwner)
		p.Location.Meridian = models.Meridian(meridian)

		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}

	if results == nil {
		results = []models.Parcel{}
	}

	return results, nil
}
