// Package dedup suppresses repeat notifications for the same subscriber,
// well, and activity type within a rolling window. Upstream feeds are rolling
// windows themselves, so the same filing reappears across consecutive runs.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/repository"
)

// DefaultWindow is the rolling suppression window when none is configured.
const DefaultWindow = 7 * 24 * time.Hour

// Guard is the per-run dedup state: the set of alert keys already notified
// inside the window. A Guard is built fresh for each run with Load; expiry
// needs no deletes because the next run loads a window that has advanced.
type Guard struct {
	alerts      repository.AlertStore
	window      time.Duration
	now         func() time.Time
	log         *logger.Logger
	seen        map[models.AlertKey]struct{}
	windowStart time.Time
}

// NewGuard creates an unloaded guard. Call Load before the first Admit.
func NewGuard(alerts repository.AlertStore, window time.Duration, log *logger.Logger) *Guard {
	return NewGuardWithClock(alerts, window, log, time.Now)
}

// NewGuardWithClock creates a guard with an injected clock for tests.
func NewGuardWithClock(alerts repository.AlertStore, window time.Duration, log *logger.Logger, now func() time.Time) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{
		alerts: alerts,
		window: window,
		now:    now,
		log:    log,
		seen:   make(map[models.AlertKey]struct{}),
	}
}

// Load fetches every alert key inside the window into the in-memory set.
// A Load failure is fatal to the run: without the window the guard cannot
// promise non-duplication.
func (g *Guard) Load(ctx context.Context) error {
	g.windowStart = g.now().Add(-g.window)

	keys, err := g.alerts.LoadKeysSince(ctx, g.windowStart)
	if err != nil {
		return fmt.Errorf("load dedup window: %w", err)
	}

	g.seen = make(map[models.AlertKey]struct{}, len(keys))
	for _, k := range keys {
		g.seen[k] = struct{}{}
	}

	g.log.Info("Dedup window loaded", map[string]interface{}{
		"window_start": g.windowStart.Format(time.RFC3339),
		"keys":         len(keys),
	})

	return nil
}

// Admit decides whether the match may proceed to routing. Admitted matches
// get an alert record appended; suppressed matches (already notified inside
// the window, including earlier in this same run) do not. The conditional
// insert also converges two racing runs onto one record: the loser of the
// race is treated as suppressed.
func (g *Guard) Admit(ctx context.Context, m models.Match) (bool, error) {
	key := models.AlertKey{
		Subscriber:   m.Subscriber.ID,
		WellID:       m.Event.WellID,
		ActivityType: m.Event.ActivityType,
	}

	if _, dup := g.seen[key]; dup {
		return false, nil
	}

	rec := models.AlertRecord{
		ID:         uuid.New(),
		Subscriber: m.Subscriber.ID,
		WellID:     m.Event.WellID,
		Activity:   m.Event.ActivityType,
		Severity:   m.Severity,
		DetectedAt: m.Event.DetectedAt,
		CreatedAt:  g.now(),
	}

	inserted, err := g.alerts.Insert(ctx, rec, g.windowStart)
	if err != nil {
		return false, fmt.Errorf("insert alert record: %w", err)
	}

	// Within-run duplicates (the same well twice in one feed) hit the set on
	// the next pass regardless of insert outcome.
	g.seen[key] = struct{}{}

	if !inserted {
		g.log.Debug("Alert record already present, suppressing", map[string]interface{}{
			"subscriber": m.Subscriber.ID.String(),
			"well_id":    m.Event.WellID.String(),
			"activity":   string(m.Event.ActivityType),
		})
	}

	return inserted, nil
}
