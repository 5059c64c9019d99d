// Package pipeline orchestrates one batch run: each normalized activity event
// flows through matching, dedup, and routing sequentially, with per-item
// errors isolated and collected into the run report.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wellwatchhq/wellwatch/internal/dedup"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/matching"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/repository"
	"github.com/wellwatchhq/wellwatch/internal/routing"
)

// Report is the outcome of one run. Errors holds every isolated per-item
// failure; a non-nil error from Run means shared setup failed and nothing was
// processed.
type Report struct {
	RunID      string   `json:"run_id"`
	Events     int      `json:"events"`
	Invalid    int      `json:"invalid_events"`
	Matches    int      `json:"matches"`
	Suppressed int      `json:"suppressed"`
	Immediate  int      `json:"immediate_sends"`
	Queued     int      `json:"queued"`
	Discarded  int      `json:"discarded"`
	Errors     []string `json:"errors,omitempty"`
}

// Pipeline wires the engine, dedup guard, and router into one runnable unit.
// A Pipeline is cheap and stateless across runs; each Run builds a fresh
// dedup guard over the current window.
type Pipeline struct {
	engine      *matching.Engine
	router      *routing.Router
	alerts      repository.AlertStore
	dedupWindow time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// New creates a pipeline.
func New(
	engine *matching.Engine,
	router *routing.Router,
	alerts repository.AlertStore,
	dedupWindow time.Duration,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		engine:      engine,
		router:      router,
		alerts:      alerts,
		dedupWindow: dedupWindow,
		log:         log,
		now:         time.Now,
	}
}

// Run processes one batch of events sequentially. Only shared-setup failures
// (loading the dedup window) are fatal; everything else is recorded per item
// and processing continues.
func (p *Pipeline) Run(ctx context.Context, events []models.ActivityEvent) (*Report, error) {
	runID := uuid.New().String()
	log := p.log.WithRunID(runID)

	report := &Report{RunID: runID, Events: len(events)}

	guard := dedup.NewGuardWithClock(p.alerts, p.dedupWindow, log, p.now)
	if err := guard.Load(ctx); err != nil {
		return nil, fmt.Errorf("run setup: %w", err)
	}

	log.Info("Run started", map[string]interface{}{"events": len(events)})

	for _, event := range events {
		if err := validateEvent(event); err != nil {
			report.Invalid++
			report.Errors = append(report.Errors, fmt.Sprintf("event %s: %v", event.ID, err))
			continue
		}

		result := p.engine.Resolve(ctx, event)
		for _, err := range result.Errors {
			report.Errors = append(report.Errors, fmt.Sprintf("event %s: %v", event.ID, err))
		}

		for _, match := range result.Matches {
			report.Matches++

			admitted, err := guard.Admit(ctx, match)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("event %s subscriber %s: %v", event.ID, match.Subscriber.ID, err))
				continue
			}
			if !admitted {
				report.Suppressed++
				continue
			}

			decision, err := p.router.Route(ctx, match)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("event %s subscriber %s: %v", event.ID, match.Subscriber.ID, err))
			}
			if decision.ImmediateSent {
				report.Immediate++
			}
			if decision.QueuedCadence != "" {
				report.Queued++
			}
			if decision.Discarded {
				report.Discarded++
			}
		}
	}

	log.Info("Run completed", map[string]interface{}{
		"events":     report.Events,
		"invalid":    report.Invalid,
		"matches":    report.Matches,
		"suppressed": report.Suppressed,
		"immediate":  report.Immediate,
		"queued":     report.Queued,
		"discarded":  report.Discarded,
		"errors":     len(report.Errors),
	})

	return report, nil
}

// validateEvent rejects events that cannot be processed: unknown activity
// types or locations violating the PLSS invariants. Ingestion normalizes
// coordinates upstream; this is the core's last line of defense.
func validateEvent(event models.ActivityEvent) error {
	if event.ID == "" {
		return fmt.Errorf("missing event id")
	}
	if event.WellID == "" {
		return fmt.Errorf("missing well identifier")
	}
	if !models.KnownActivityType(event.ActivityType) {
		return fmt.Errorf("unknown activity type %q", event.ActivityType)
	}
	if !event.SurfaceLocation.Valid() {
		return fmt.Errorf("invalid surface location %s", event.SurfaceLocation.Key())
	}
	if event.BottomHole != nil && !event.BottomHole.Valid() {
		return fmt.Errorf("invalid bottom-hole location %s", event.BottomHole.Key())
	}
	return nil
}
