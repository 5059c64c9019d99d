// Package routing decides, per surviving match, whether notification happens
// immediately or through a digest cadence, honoring subscriber and
// organization preferences.
package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/repository"
)

// ImmediateSender is the immediate-path email collaborator.
type ImmediateSender interface {
	SendImmediate(ctx context.Context, payload models.ImmediatePayload) error
}

// Decision records what routing did with one match, for run reporting.
type Decision struct {
	Mode          models.NotificationMode
	ImmediateSent bool
	QueuedCadence models.Cadence // empty when nothing was queued
	Discarded     bool
}

// Router resolves effective delivery modes and splits matches between the
// immediate-send path and the digest queue.
type Router struct {
	orgs     repository.OrganizationStore
	pending  repository.PendingStore
	sender   ImmediateSender
	operator repository.OperatorDirectory
	log      *logger.Logger
	now      func() time.Time

	// Organizations change rarely; cache lookups for the life of the router
	// (one run).
	orgCache map[models.OrganizationID]*models.Organization
}

// NewRouter creates a router over the given collaborators.
func NewRouter(
	orgs repository.OrganizationStore,
	pending repository.PendingStore,
	sender ImmediateSender,
	operator repository.OperatorDirectory,
	log *logger.Logger,
) *Router {
	return NewRouterWithClock(orgs, pending, sender, operator, log, time.Now)
}

// NewRouterWithClock creates a router with an injected clock for tests.
func NewRouterWithClock(
	orgs repository.OrganizationStore,
	pending repository.PendingStore,
	sender ImmediateSender,
	operator repository.OperatorDirectory,
	log *logger.Logger,
	now func() time.Time,
) *Router {
	return &Router{
		orgs:     orgs,
		pending:  pending,
		sender:   sender,
		operator: operator,
		log:      log,
		now:      now,
		orgCache: make(map[models.OrganizationID]*models.Organization),
	}
}

// EffectiveMode resolves the delivery mode for a subscriber given their
// organization (nil when they belong to none). The mapping is total: every
// combination of subscriber and organization state yields exactly one mode.
func EffectiveMode(sub models.Subscriber, org *models.Organization) models.NotificationMode {
	// An organization that disallows overrides always wins.
	if org != nil && !org.AllowOverride {
		return orgDefault(org)
	}

	if sub.Override != "" && sub.Override != models.ModeUseOrgDefault {
		return sub.Override
	}

	if org != nil {
		return orgDefault(org)
	}

	return models.ModeImmediate
}

func orgDefault(org *models.Organization) models.NotificationMode {
	if org.DefaultMode == "" || org.DefaultMode == models.ModeUseOrgDefault {
		return models.ModeImmediate
	}
	return org.DefaultMode
}

// Route applies the effective mode to one admitted match: nothing for None,
// an immediate payload, a queued digest copy, or both. Immediate-path send
// failures are returned for the run's error list but are not retried; there
// is no immediate-path queue.
func (r *Router) Route(ctx context.Context, m models.Match) (Decision, error) {
	org, err := r.organization(ctx, m.Subscriber.Org)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve organization for %s: %w", m.Subscriber.ID, err)
	}

	mode := EffectiveMode(m.Subscriber, org)
	decision := Decision{Mode: mode}

	if mode == models.ModeNone {
		// The alert record written by dedup stands; nothing is sent or queued.
		decision.Discarded = true
		return decision, nil
	}

	summary := r.summarize(ctx, m)

	// An immediate-path failure must not cost the subscriber their digest
	// copy: the alert record already stands, so for the combined mode the
	// weekly enqueue proceeds and the send error joins the run's error list.
	var sendErr error
	if mode == models.ModeImmediate || mode == models.ModeImmediateWeekly {
		payload := models.ImmediatePayload{
			Email:    m.Subscriber.Email,
			Severity: m.Severity,
			Summary:  summary,
		}
		if err := r.sender.SendImmediate(ctx, payload); err != nil {
			sendErr = fmt.Errorf("immediate send to %s: %w", m.Subscriber.Email, err)
		} else {
			decision.ImmediateSent = true
		}
	}

	var cadence models.Cadence
	switch mode {
	case models.ModeDailyDigest:
		cadence = models.CadenceDaily
	case models.ModeWeeklyDigest, models.ModeImmediateWeekly:
		cadence = models.CadenceWeekly
	default:
		return decision, sendErr
	}

	pn := models.PendingNotification{
		ID:         uuid.New(),
		Subscriber: m.Subscriber.ID,
		Email:      m.Subscriber.Email,
		Cadence:    cadence,
		Summary:    summary,
		QueuedAt:   r.now(),
	}
	if err := r.pending.Enqueue(ctx, pn); err != nil {
		if sendErr != nil {
			return decision, fmt.Errorf("enqueue %s digest for %s: %w (after %v)", cadence, m.Subscriber.ID, err, sendErr)
		}
		return decision, fmt.Errorf("enqueue %s digest for %s: %w", cadence, m.Subscriber.ID, err)
	}
	decision.QueuedCadence = cadence

	return decision, sendErr
}

// organization resolves and caches the subscriber's organization record.
func (r *Router) organization(ctx context.Context, id models.OrganizationID) (*models.Organization, error) {
	if id == "" {
		return nil, nil
	}
	if org, ok := r.orgCache[id]; ok {
		return org, nil
	}
	org, err := r.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.orgCache[id] = org
	return org, nil
}

// summarize renders the self-contained alert summary queued and sent for a
// match. Operator directory failures degrade to the raw operator number
// rather than blocking the notification.
func (r *Router) summarize(ctx context.Context, m models.Match) models.AlertSummary {
	operatorName := m.Event.Operator
	if r.operator != nil && m.Event.Operator != "" {
		name, err := r.operator.LookupName(ctx, m.Event.Operator)
		if err != nil {
			r.log.Warn("Operator directory lookup failed", map[string]interface{}{
				"operator": m.Event.Operator,
				"error":    err.Error(),
			})
		} else {
			operatorName = name
		}
	}

	return models.AlertSummary{
		WellID:       m.Event.WellID,
		ActivityType: m.Event.ActivityType,
		Severity:     m.Severity,
		Operator:     operatorName,
		County:       m.Event.County,
		Location:     m.Event.SurfaceLocation.Key(),
		Headline:     headline(m, operatorName),
		DetectedAt:   m.Event.DetectedAt,
		ExpiresAt:    m.Event.PermitExpiresAt,
	}
}

// headline produces the one-line description used as the email subject line
// and digest list entry.
func headline(m models.Match, operatorName string) string {
	var what string
	switch m.Event.ActivityType {
	case models.ActivityNewPermit:
		what = "New drilling permit"
	case models.ActivityCompletion:
		what = "Well completion filed"
	case models.ActivityOperatorTransfer:
		what = "Operator transfer"
	case models.ActivityStatusChange:
		what = "Well status change"
	case models.ActivityDocketFiling:
		what = "Court docket filing"
	default:
		what = "Well activity"
	}

	where := m.Event.SurfaceLocation.Key()
	if m.Event.County != "" {
		where = fmt.Sprintf("%s (%s County)", where, m.Event.County)
	}

	if operatorName != "" {
		return fmt.Sprintf("%s by %s at %s", what, operatorName, where)
	}
	return fmt.Sprintf("%s at %s", what, where)
}
