// Package digest drains the pending-notification queue on cadence ticks and
// produces one grouped summary payload per subscriber.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/repository"
)

// HighlightWindow is how close a permit expiration has to be to surface in
// the digest highlights.
const HighlightWindow = 7 * 24 * time.Hour

// Sender is the digest-path email collaborator.
type Sender interface {
	SendDigest(ctx context.Context, payload models.DigestPayload) error
}

// Report summarizes one assembler tick for logging and the runner's exit
// status.
type Report struct {
	Cadence     models.Cadence
	Subscribers int
	Delivered   int
	Failed      int
	Errors      []string
}

// Assembler groups unprocessed pending notifications per subscriber and hands
// them to the email collaborator, marking rows processed only after delivery
// is confirmed.
type Assembler struct {
	pending repository.PendingStore
	sender  Sender
	log     *logger.Logger
	now     func() time.Time
}

// NewAssembler creates a digest assembler.
func NewAssembler(pending repository.PendingStore, sender Sender, log *logger.Logger) *Assembler {
	return NewAssemblerWithClock(pending, sender, log, time.Now)
}

// NewAssemblerWithClock creates an assembler with an injected clock for tests.
func NewAssemblerWithClock(pending repository.PendingStore, sender Sender, log *logger.Logger, now func() time.Time) *Assembler {
	return &Assembler{pending: pending, sender: sender, log: log, now: now}
}

// Run executes one cadence tick. A subscriber with nothing queued produces no
// payload. A failed delivery leaves that subscriber's rows unprocessed for
// the next tick (at-least-once, whole payload resent) and does not block
// other subscribers. Only the initial queue load is fatal.
func (a *Assembler) Run(ctx context.Context, cadence models.Cadence) (*Report, error) {
	pending, err := a.pending.FindUnprocessed(ctx, cadence)
	if err != nil {
		return nil, fmt.Errorf("load %s digest queue: %w", cadence, err)
	}

	report := &Report{Cadence: cadence}

	if len(pending) == 0 {
		a.log.Info("Digest queue empty", map[string]interface{}{"cadence": string(cadence)})
		return report, nil
	}

	bySubscriber := make(map[models.SubscriberID][]models.PendingNotification)
	for _, pn := range pending {
		bySubscriber[pn.Subscriber] = append(bySubscriber[pn.Subscriber], pn)
	}
	report.Subscribers = len(bySubscriber)

	// Deterministic delivery order.
	subscribers := make([]models.SubscriberID, 0, len(bySubscriber))
	for id := range bySubscriber {
		subscribers = append(subscribers, id)
	}
	sort.Slice(subscribers, func(i, j int) bool { return subscribers[i] < subscribers[j] })

	for _, id := range subscribers {
		rows := bySubscriber[id]
		payload := a.buildPayload(cadence, rows)

		if err := a.sender.SendDigest(ctx, payload); err != nil {
			// Rows stay unprocessed; the next tick picks them up.
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("digest send to %s: %v", id, err))
			a.log.Warn("Digest delivery failed, leaving rows unprocessed", map[string]interface{}{
				"subscriber": id.String(),
				"cadence":    string(cadence),
				"items":      len(rows),
				"error":      err.Error(),
			})
			continue
		}

		ids := make([]uuid.UUID, 0, len(rows))
		for _, pn := range rows {
			ids = append(ids, pn.ID)
		}
		if err := a.pending.MarkProcessed(ctx, ids, a.now()); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("mark processed for %s: %v", id, err))
			a.log.Error("Failed to mark digest rows processed", err, map[string]interface{}{
				"subscriber": id.String(),
				"rows":       len(ids),
			})
			continue
		}

		report.Delivered++
	}

	a.log.Info("Digest run completed", map[string]interface{}{
		"cadence":     string(cadence),
		"subscribers": report.Subscribers,
		"delivered":   report.Delivered,
		"failed":      report.Failed,
	})

	return report, nil
}

// buildPayload groups one subscriber's queued alerts by activity type and
// pulls urgent items into highlights.
func (a *Assembler) buildPayload(cadence models.Cadence, rows []models.PendingNotification) models.DigestPayload {
	payload := models.DigestPayload{
		Email:   rows[0].Email,
		Cadence: cadence,
		Groups:  make(map[models.ActivityType][]models.AlertSummary),
	}

	cutoff := a.now().Add(HighlightWindow)

	for _, pn := range rows {
		s := pn.Summary
		payload.Groups[s.ActivityType] = append(payload.Groups[s.ActivityType], s)

		if s.ExpiresAt != nil && !s.ExpiresAt.Before(a.now()) && s.ExpiresAt.Before(cutoff) {
			payload.Highlights = append(payload.Highlights, s)
		}
	}

	// Highlights lead with whatever expires soonest.
	sort.Slice(payload.Highlights, func(i, j int) bool {
		return payload.Highlights[i].ExpiresAt.Before(*payload.Highlights[j].ExpiresAt)
	})

	return payload
}
