package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wellwatchhq/wellwatch/internal/cache"
	"github.com/wellwatchhq/wellwatch/internal/config"
	"github.com/wellwatchhq/wellwatch/internal/database"
	"github.com/wellwatchhq/wellwatch/internal/digest"
	"github.com/wellwatchhq/wellwatch/internal/email"
	"github.com/wellwatchhq/wellwatch/internal/freshness"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/matching"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/pipeline"
	"github.com/wellwatchhq/wellwatch/internal/plss"
	"github.com/wellwatchhq/wellwatch/internal/repository"
	"github.com/wellwatchhq/wellwatch/internal/routing"
)

// Jobs the runner can execute. Scheduling and retry-on-crash belong to the
// external scheduler; each invocation is one-shot.
const (
	jobDaily        = "daily"
	jobWeekly       = "weekly"
	jobDocket       = "docket"
	jobDigestDaily  = "digest-daily"
	jobDigestWeekly = "digest-weekly"
)

// feedsForJob maps a matching job to the feeds it covers. The weekly job is a
// catch-up pass over the same feeds as the daily one; how far back the fetcher
// reaches is its concern, not ours.
var feedsForJob = map[string][]models.FeedType{
	jobDaily:  {models.FeedPermits, models.FeedCompletions, models.FeedTransfers, models.FeedStatuses},
	jobWeekly: {models.FeedPermits, models.FeedCompletions, models.FeedTransfers, models.FeedStatuses},
	jobDocket: {models.FeedDockets},
}

// batchFile is the fetcher's hand-off: per feed, how many records the source
// served and the normalized form of the ones it had not seen before.
type batchFile struct {
	Feeds []feedBatch `json:"feeds"`
}

type feedBatch struct {
	Feed    models.FeedType `json:"feed"`
	Fetched int             `json:"fetched"`
	Events  []rawEvent      `json:"events"`
}

// rawEvent carries locations in feed form; normalization happens here so the
// pipeline only ever sees canonical coordinates.
type rawEvent struct {
	EventID         string         `json:"event_id"`
	WellID          string         `json:"well_id"`
	ActivityType    string         `json:"activity_type"`
	SurfaceLocation rawCoordinate  `json:"surface_location"`
	BottomHole      *rawCoordinate `json:"bottom_hole,omitempty"`
	Operator        string         `json:"operator,omitempty"`
	PrevOperator    string         `json:"previous_operator,omitempty"`
	PrevStatus      string         `json:"previous_status,omitempty"`
	NewStatus       string         `json:"new_status,omitempty"`
	County          string         `json:"county,omitempty"`
	DetectedAt      time.Time      `json:"detected_at"`
	PermitExpiresAt *time.Time     `json:"permit_expires_at,omitempty"`
}

type rawCoordinate struct {
	Section  string `json:"section"`
	Township string `json:"township"`
	Range    string `json:"range"`
	Meridian string `json:"meridian,omitempty"`
}

func main() {
	job := flag.String("job", "", "job to run: daily|weekly|docket|digest-daily|digest-weekly")
	eventsPath := flag.String("events", "", "path to the fetcher's batch file (matching jobs only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	var provider email.Provider
	if cfg.Email.BrevoAPIKey != "" {
		provider = email.NewBrevoProvider(cfg.Email.BrevoAPIKey, cfg.Email.FromAddr, cfg.Email.FromName, log)
	} else {
		log.Warn("BREVO_API_KEY not set, using in-memory mock provider", nil)
		provider = email.NewMockProvider()
	}
	sender := email.NewSender(provider, cfg.Email.SendsPerSecond, cfg.Email.OperatorAddr, log)

	switch *job {
	case jobDaily, jobWeekly, jobDocket:
		if *eventsPath == "" {
			log.Fatal("Matching jobs require -events", nil, map[string]interface{}{"job": *job})
		}
		if err := runMatching(ctx, cfg, db, sender, log, *job, *eventsPath); err != nil {
			log.Fatal("Matching run failed", err, map[string]interface{}{"job": *job})
		}
	case jobDigestDaily:
		if err := runDigest(ctx, db, sender, log, models.CadenceDaily); err != nil {
			log.Fatal("Digest run failed", err, map[string]interface{}{"job": *job})
		}
	case jobDigestWeekly:
		if err := runDigest(ctx, db, sender, log, models.CadenceWeekly); err != nil {
			log.Fatal("Digest run failed", err, map[string]interface{}{"job": *job})
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown job %q, want daily|weekly|docket|digest-daily|digest-weekly\n", *job)
		os.Exit(1)
	}
}

// runMatching loads the fetcher's batch file, pushes every event for the
// job's feeds through the pipeline, and records a freshness observation per
// feed. Feed-health signals go to the operator channel, never to subscribers.
func runMatching(
	ctx context.Context,
	cfg *config.Config,
	db *database.Database,
	sender *email.Sender,
	log *logger.Logger,
	job, eventsPath string,
) error {
	batch, err := loadBatch(eventsPath)
	if err != nil {
		return err
	}

	parcelStore := repository.NewParcelRepository(db)
	wellStore := repository.NewTrackedWellRepository(db)
	subscriberStore := repository.NewSubscriberRepository(db)
	orgStore := repository.NewOrganizationRepository(db)
	alertStore := repository.NewAlertRepository(db)
	pendingStore := repository.NewPendingRepository(db)
	feedStore := repository.NewFeedStatusRepository(db)

	operatorDir := repository.NewCachedOperatorDirectory(
		repository.NewOperatorDirectory(db),
		cache.NewTTL[string, string](),
		cfg.Engine.OperatorCacheTTL,
	)

	engine := matching.NewEngine(parcelStore, wellStore, subscriberStore, orgStore, log)
	router := routing.NewRouter(orgStore, pendingStore, sender, operatorDir, log)
	pipe := pipeline.New(engine, router, alertStore, cfg.Engine.DedupWindow, log)
	monitor := freshness.NewMonitor(feedStore, cfg.Engine.StaleThreshold, log)

	wanted := make(map[models.FeedType]bool)
	for _, feed := range feedsForJob[job] {
		wanted[feed] = true
	}

	var events []models.ActivityEvent
	var dropped []string
	observed := make(map[models.FeedType]bool)

	for _, fb := range batch.Feeds {
		if !wanted[fb.Feed] {
			log.Warn("Skipping feed outside this job", map[string]interface{}{
				"job":  job,
				"feed": string(fb.Feed),
			})
			continue
		}
		observed[fb.Feed] = true

		feedEvents, feedDropped := normalizeFeedEvents(fb, log)
		events = append(events, feedEvents...)
		dropped = append(dropped, feedDropped...)

		signal, err := monitor.Observe(ctx, fb.Feed, fb.Fetched, len(fb.Events))
		if err != nil {
			return fmt.Errorf("freshness observation for %s: %w", fb.Feed, err)
		}
		if signal != freshness.SignalNone {
			subject := freshness.Describe(fb.Feed, signal)
			body := fmt.Sprintf("Job %s observed feed %s: fetched=%d new=%d signal=%s",
				job, fb.Feed, fb.Fetched, len(fb.Events), signal)
			if err := sender.NotifyOperator(ctx, subject, body); err != nil {
				log.Error("Failed to notify operator of feed signal", err, map[string]interface{}{
					"feed":   string(fb.Feed),
					"signal": string(signal),
				})
			}
		}
	}

	// A feed the fetcher produced no entry for still gets a staleness check;
	// silence is exactly the failure mode the watchdog exists for.
	for _, feed := range feedsForJob[job] {
		if observed[feed] {
			continue
		}
		stale, err := monitor.IsStale(ctx, feed)
		if err != nil {
			return fmt.Errorf("staleness check for %s: %w", feed, err)
		}
		if stale {
			subject := freshness.Describe(feed, freshness.SignalFeedStale)
			if err := sender.NotifyOperator(ctx, subject, fmt.Sprintf("Job %s: no batch entry for feed %s", job, feed)); err != nil {
				log.Error("Failed to notify operator of stale feed", err, map[string]interface{}{
					"feed": string(feed),
				})
			}
		}
	}

	report, err := pipe.Run(ctx, events)
	if err != nil {
		return err
	}

	// Normalization drops are per-item failures like any other; fold them into
	// the run's accounting instead of leaving them log-only.
	report.Invalid += len(dropped)
	report.Errors = append(report.Errors, dropped...)

	if len(report.Errors) > 0 {
		log.Warn("Run completed with item errors", map[string]interface{}{
			"run_id": report.RunID,
			"errors": len(report.Errors),
		})
	}
	return nil
}

// normalizeFeedEvents converts one feed's raw events to canonical form. Events
// that fail normalization are dropped from the batch but returned as error
// strings so the run report counts them.
func normalizeFeedEvents(fb feedBatch, log *logger.Logger) ([]models.ActivityEvent, []string) {
	events := make([]models.ActivityEvent, 0, len(fb.Events))
	var dropped []string

	for _, raw := range fb.Events {
		event, err := normalizeEvent(raw)
		if err != nil {
			log.Warn("Dropping event that failed normalization", map[string]interface{}{
				"event_id": raw.EventID,
				"feed":     string(fb.Feed),
				"error":    err.Error(),
			})
			dropped = append(dropped, fmt.Sprintf("event %s (%s): %v", raw.EventID, fb.Feed, err))
			continue
		}
		events = append(events, event)
	}

	return events, dropped
}

// runDigest executes one cadence tick of the digest assembler.
func runDigest(ctx context.Context, db *database.Database, sender *email.Sender, log *logger.Logger, cadence models.Cadence) error {
	pendingStore := repository.NewPendingRepository(db)
	assembler := digest.NewAssembler(pendingStore, sender, log)

	report, err := assembler.Run(ctx, cadence)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		log.Warn("Digest run left subscribers unprocessed", map[string]interface{}{
			"cadence": string(cadence),
			"failed":  report.Failed,
		})
	}
	return nil
}

func loadBatch(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var batch batchFile
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	return &batch, nil
}

func normalizeEvent(raw rawEvent) (models.ActivityEvent, error) {
	surface, err := plss.Normalize(plss.Raw{
		Section:  raw.SurfaceLocation.Section,
		Township: raw.SurfaceLocation.Township,
		Range:    raw.SurfaceLocation.Range,
		Meridian: raw.SurfaceLocation.Meridian,
		County:   raw.County,
	})
	if err != nil {
		return models.ActivityEvent{}, fmt.Errorf("surface location: %w", err)
	}

	var bottomHole *models.Coordinate
	if raw.BottomHole != nil {
		bh, err := plss.Normalize(plss.Raw{
			Section:  raw.BottomHole.Section,
			Township: raw.BottomHole.Township,
			Range:    raw.BottomHole.Range,
			Meridian: raw.BottomHole.Meridian,
			County:   raw.County,
		})
		if err != nil {
			return models.ActivityEvent{}, fmt.Errorf("bottom-hole location: %w", err)
		}
		bottomHole = &bh
	}

	detectedAt := raw.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}

	return models.ActivityEvent{
		ID:               raw.EventID,
		WellID:           models.WellID(raw.WellID),
		ActivityType:     models.ActivityType(raw.ActivityType),
		SurfaceLocation:  surface,
		BottomHole:       bottomHole,
		Operator:         raw.Operator,
		PreviousOperator: raw.PrevOperator,
		PreviousStatus:   raw.PrevStatus,
		NewStatus:        raw.NewStatus,
		County:           raw.County,
		DetectedAt:       detectedAt,
		PermitExpiresAt:  raw.PermitExpiresAt,
	}, nil
}
