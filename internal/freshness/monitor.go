// Package freshness watches whether upstream feeds are still producing
// genuinely new records, as opposed to merely being re-fetched.
package freshness

import (
	"context"
	"fmt"
	"time"

	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/repository"
)

// DefaultStaleThreshold is used when no threshold is configured.
const DefaultStaleThreshold = 7 * 24 * time.Hour

// Signal is a feed-health condition routed to the operator channel, never to
// subscribers.
type Signal string

const (
	// SignalNone means the feed looks healthy.
	SignalNone Signal = ""

	// SignalFeedEmpty means a fetch returned zero records. More urgent than
	// staleness: it usually indicates a fetch or parse break rather than a
	// lull in filings.
	SignalFeedEmpty Signal = "FEED_EMPTY"

	// SignalFeedStale means the feed keeps serving records but none of them
	// have been new for longer than the threshold.
	SignalFeedStale Signal = "FEED_STALE"
)

// Monitor tracks per-feed freshness baselines.
type Monitor struct {
	store     repository.FeedStatusStore
	threshold time.Duration
	now       func() time.Time
	log       *logger.Logger
}

// NewMonitor creates a freshness monitor.
func NewMonitor(store repository.FeedStatusStore, threshold time.Duration, log *logger.Logger) *Monitor {
	return NewMonitorWithClock(store, threshold, log, time.Now)
}

// NewMonitorWithClock creates a monitor with an injected clock for tests.
func NewMonitorWithClock(store repository.FeedStatusStore, threshold time.Duration, log *logger.Logger, now func() time.Time) *Monitor {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	return &Monitor{store: store, threshold: threshold, now: now, log: log}
}

// Observe records the outcome of one feed fetch: how many records were served
// and how many of them had never been seen before. It returns the health
// signal the observation produces.
func (m *Monitor) Observe(ctx context.Context, feed models.FeedType, fetched, newRecords int) (Signal, error) {
	now := m.now()

	if err := m.store.RecordCheck(ctx, feed, now); err != nil {
		return SignalNone, fmt.Errorf("record check for %s: %w", feed, err)
	}

	if fetched == 0 {
		m.log.Warn("Feed returned no records", map[string]interface{}{"feed": string(feed)})
		return SignalFeedEmpty, nil
	}

	if newRecords > 0 {
		if err := m.store.RecordNewRecords(ctx, feed, now); err != nil {
			return SignalNone, fmt.Errorf("record new-record baseline for %s: %w", feed, err)
		}
		return SignalNone, nil
	}

	stale, err := m.IsStale(ctx, feed)
	if err != nil {
		return SignalNone, err
	}
	if stale {
		return SignalFeedStale, nil
	}
	return SignalNone, nil
}

// IsStale reports whether the feed's last genuinely new record is older than
// the threshold. A feed with no recorded baseline is never stale: the first
// observation establishes the baseline, not an alarm.
func (m *Monitor) IsStale(ctx context.Context, feed models.FeedType) (bool, error) {
	status, err := m.store.Get(ctx, feed)
	if err != nil {
		return false, fmt.Errorf("load feed status for %s: %w", feed, err)
	}
	if status == nil || status.LastNewRecord == nil {
		return false, nil
	}

	age := m.now().Sub(*status.LastNewRecord)
	if age <= m.threshold {
		return false, nil
	}

	m.log.Warn("Feed is stale", map[string]interface{}{
		"feed":            string(feed),
		"last_new_record": status.LastNewRecord.Format(time.RFC3339),
		"age_hours":       int(age.Hours()),
	})
	return true, nil
}

// Describe renders a signal as an operator-notification subject line.
func Describe(feed models.FeedType, signal Signal) string {
	switch signal {
	case SignalFeedEmpty:
		return fmt.Sprintf("Feed %s returned no records - possible fetch or parse break", feed)
	case SignalFeedStale:
		return fmt.Sprintf("Feed %s has produced no new records beyond the staleness threshold", feed)
	default:
		return fmt.Sprintf("Feed %s is healthy", feed)
	}
}
