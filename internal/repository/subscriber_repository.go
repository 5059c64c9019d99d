package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/models"
)

// SubscriberStore defines the data access surface for subscribers.
type SubscriberStore interface {
	// GetByID fetches one subscriber.
	// Returns nil, nil if the subscriber does not exist (not an error).
	GetByID(ctx context.Context, id models.SubscriberID) (*models.Subscriber, error)
}

// OrganizationStore defines the data access surface for organizations and
// their memberships.
type OrganizationStore interface {
	// GetByID fetches one organization.
	// Returns nil, nil if the organization does not exist (not an error).
	GetByID(ctx context.Context, id models.OrganizationID) (*models.Organization, error)

	// ActiveMembers lists the active subscribers belonging to the
	// organization. Returns an empty slice when there are none.
	ActiveMembers(ctx context.Context, id models.OrganizationID) ([]models.Subscriber, error)
}

// subscriberRepository is the pgx-backed implementation of SubscriberStore.
type subscriberRepository struct {
	db *database.Database
}

// NewSubscriberRepository creates a new SubscriberStore backed by PostgreSQL.
func NewSubscriberRepository(db *database.Database) SubscriberStore {
	return &subscriberRepository{db: db}
}

func (r *subscriberRepository) GetByID(ctx context.Context, id models.SubscriberID) (*models.Subscriber, error) {
	query := `
		SELECT id, email, active, COALESCE(notification_override, ''), COALESCE(org_id, '')
		FROM subscribers
		WHERE id = $1
	`

	var sub models.Subscriber
	var subID, override, orgID string

	err := r.db.Pool.QueryRow(ctx, query, string(id)).Scan(
		&subID,
		&sub.Email,
		&sub.Active,
		&override,
		&orgID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query subscriber %s: %w", id, err)
	}

	sub.ID = models.SubscriberID(subID)
	sub.Override = models.NotificationMode(override)
	sub.Org = models.OrganizationID(orgID)

	return &sub, nil
}

// organizationRepository is the pgx-backed implementation of OrganizationStore.
type organizationRepository struct {
	db *database.Database
}

// NewOrganizationRepository creates a new OrganizationStore backed by PostgreSQL.
func NewOrganizationRepository(db *database.Database) OrganizationStore {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) GetByID(ctx context.Context, id models.OrganizationID) (*models.Organization, error) {
	query := `
		SELECT id, default_mode, allow_member_override
		FROM organizations
		WHERE id = $1
	`

	var org models.Organization
	var orgID, mode string

	err := r.db.Pool.QueryRow(ctx, query, string(id)).Scan(&orgID, &mode, &org.AllowOverride)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query organization %s: %w", id, err)
	}

	org.ID = models.OrganizationID(orgID)
	org.DefaultMode = models.NotificationMode(mode)

	return &org, nil
}

func (r *organizationRepository) ActiveMembers(ctx context.Context, id models.OrganizationID) ([]models.Subscriber, error) {
	query := `
		SELECT s.id, s.email, s.active, COALESCE(s.notification_override, ''), COALESCE(s.org_id, '')
		FROM subscribers s
		JOIN org_members m ON m.subscriber_id = s.id
		WHERE m.org_id = $1
		  AND s.active = TRUE
	`

	rows, err := r.db.Pool.Query(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query members of organization %s: %w", id, err)
	}
	defer rows.Close()

	var results []models.Subscriber

	for rows.Next() {
		var sub models.Subscriber
		var subID, override, orgID string

		if err := rows.Scan(&subID, &sub.Email, &sub.Active, &override, &orgID); err != nil {
			return nil, fmt.Errorf("failed to scan member row: %w", err)
		}

		sub.ID = models.SubscriberID(subID)
		sub.Override = models.NotificationMode(override)
		sub.Org = models.OrganizationID(orgID)

		results = append(results, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	if results == nil {
		results = []models.Subscriber{}
	}

	return results, nil
}
