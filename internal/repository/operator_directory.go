package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wellwatchhq/wellwatch/internal/cache"
	"github.com/wellwatchhq/wellwatch/internal/database"
)

// OperatorDirectory resolves an operator number from a filing to the
// operator's registered company name, for payload rendering.
type OperatorDirectory interface {
	// LookupName returns the registered name for an operator number, or the
	// number itself when the directory has no entry for it.
	LookupName(ctx context.Context, operatorNo string) (string, error)
}

// operatorDirectory is the pgx-backed implementation of OperatorDirectory.
type operatorDirectory struct {
	db *database.Database
}

// NewOperatorDirectory creates a new OperatorDirectory backed by PostgreSQL.
func NewOperatorDirectory(db *database.Database) OperatorDirectory {
	return &operatorDirectory{db: db}
}

func (d *operatorDirectory) LookupName(ctx context.Context, operatorNo string) (string, error) {
	query := `SELECT name FROM operators WHERE operator_no = $1`

	var name string
	err := d.db.Pool.QueryRow(ctx, query, operatorNo).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Unknown operators render as their raw number.
			return operatorNo, nil
		}
		return "", fmt.Errorf("failed to look up operator %s: %w", operatorNo, err)
	}

	return name, nil
}

// CachedOperatorDirectory is a read-through decorator over an
// OperatorDirectory. The cache is injected, never process-global, so batch
// runs and tests each control their own cache lifetime.
type CachedOperatorDirectory struct {
	next  OperatorDirectory
	cache cache.Cache[string, string]
	ttl   time.Duration
}

// NewCachedOperatorDirectory wraps next with the injected TTL cache.
func NewCachedOperatorDirectory(next OperatorDirectory, c cache.Cache[string, string], ttl time.Duration) *CachedOperatorDirectory {
	return &CachedOperatorDirectory{next: next, cache: c, ttl: ttl}
}

// LookupName serves from cache when possible and populates it on a miss.
// Lookup failures are not cached.
func (d *CachedOperatorDirectory) LookupName(ctx context.Context, operatorNo string) (string, error) {
	if name, ok := d.cache.Get(operatorNo); ok {
		return name, nil
	}

	name, err := d.next.LookupName(ctx, operatorNo)
	if err != nil {
		return "", err
	}

	d.cache.Set(operatorNo, name, d.ttl)
	return name, nil
}
