// Package matching resolves a single activity event into the set of
// (subscriber, severity) matches across tracked parcels and wells.
package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/wellwatchhq/wellwatch/internal/logger"
	"github.com/wellwatchhq/wellwatch/internal/models"
	"github.com/wellwatchhq/wellwatch/internal/plss"
	"github.com/wellwatchhq/wellwatch/internal/repository"
)

// Adjacency radii: horizontal laterals can end several sections from the
// surface hole, so bottom-hole neighborhoods use the wider grid.
const (
	surfaceRadius    = 1
	bottomHoleRadius = 2
)

// Result carries the matches for one event plus any per-candidate registry
// errors encountered along the way. A lookup failure for one candidate never
// aborts resolution for the rest.
type Result struct {
	Matches []models.Match
	Errors  []error
}

// Engine resolves activity events against the parcel and well registries.
type Engine struct {
	parcels repository.ParcelStore
	wells   repository.TrackedWellStore
	subs    repository.SubscriberStore
	orgs    repository.OrganizationStore
	log     *logger.Logger
}

// NewEngine creates a match engine over the given registries.
func NewEngine(
	parcels repository.ParcelStore,
	wells repository.TrackedWellStore,
	subs repository.SubscriberStore,
	orgs repository.OrganizationStore,
	log *logger.Logger,
) *Engine {
	return &Engine{
		parcels: parcels,
		wells:   wells,
		subs:    subs,
		orgs:    orgs,
		log:     log,
	}
}

// locationBucket records the severity a parcel at a given location key would
// match at, and whether that match requires the parcel to opt into adjacency
// monitoring.
type locationBucket struct {
	severity      models.Severity
	needsAdjacent bool
}

// Resolve computes every (subscriber, severity) match for one event. A
// subscriber matching multiple ways receives exactly one match at the highest
// severity found; parcels and wells owned by organizations fan out to every
// active member.
func (e *Engine) Resolve(ctx context.Context, event models.ActivityEvent) Result {
	var res Result

	buckets := e.locationBuckets(event)

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}

	// One batched query across the entire neighborhood.
	parcels, err := e.parcels.FindActiveByLocationKeys(ctx, keys)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("parcel registry query: %w", err))
		parcels = nil
	}

	collapsed := make(map[models.SubscriberID]models.Match)
	orgMembers := make(map[models.OrganizationID][]models.Subscriber)

	for _, parcel := range parcels {
		bucket, ok := buckets[parcel.Location.Key()]
		if !ok {
			continue
		}
		if bucket.needsAdjacent && !parcel.MonitorAdjacent {
			continue
		}
		e.fanOut(ctx, &res, collapsed, orgMembers, parcel.Owner, parcel.OrgOwner, bucket.severity, event)
	}

	tracked, err := e.wells.FindActiveByWell(ctx, event.WellID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("tracked well registry query: %w", err))
		tracked = nil
	}

	for _, well := range tracked {
		e.fanOut(ctx, &res, collapsed, orgMembers, well.Owner, well.OrgOwner, models.SeverityTrackedWell, event)
	}

	res.Matches = make([]models.Match, 0, len(collapsed))
	for _, m := range collapsed {
		res.Matches = append(res.Matches, m)
	}
	sort.Slice(res.Matches, func(i, j int) bool {
		return res.Matches[i].Subscriber.ID < res.Matches[j].Subscriber.ID
	})

	e.log.Debug("Event resolved", map[string]interface{}{
		"event_id": event.ID,
		"well_id":  event.WellID.String(),
		"matches":  len(res.Matches),
		"errors":   len(res.Errors),
	})

	return res
}

// locationBuckets builds the severity map over every location key that could
// produce a parcel match for the event. When the same section qualifies at
// more than one severity the higher one wins.
func (e *Engine) locationBuckets(event models.ActivityEvent) map[string]locationBucket {
	buckets := make(map[string]locationBucket)

	put := func(key string, severity models.Severity, needsAdjacent bool) {
		if existing, ok := buckets[key]; ok && existing.severity >= severity {
			return
		}
		buckets[key] = locationBucket{severity: severity, needsAdjacent: needsAdjacent}
	}

	put(event.SurfaceLocation.Key(), models.SeverityYourProperty, false)

	if event.Horizontal() {
		put(event.BottomHole.Key(), models.SeverityHorizontalPathThroughProperty, false)
	}

	for _, key := range plss.NeighborKeys(event.SurfaceLocation, surfaceRadius) {
		put(key, models.SeverityAdjacentSection, true)
	}

	if event.Horizontal() {
		for _, key := range plss.NeighborKeys(*event.BottomHole, bottomHoleRadius) {
			put(key, models.SeverityHorizontalPathAdjacent, true)
		}
	}

	return buckets
}

// fanOut applies one matched holding to the collapsed match set. Directly
// owned holdings match their owner; organization holdings match every active
// member, tagged with the organization for attribution.
func (e *Engine) fanOut(
	ctx context.Context,
	res *Result,
	collapsed map[models.SubscriberID]models.Match,
	orgMembers map[models.OrganizationID][]models.Subscriber,
	owner models.SubscriberID,
	orgOwner models.OrganizationID,
	severity models.Severity,
	event models.ActivityEvent,
) {
	if orgOwner != "" {
		members, ok := orgMembers[orgOwner]
		if !ok {
			var err error
			members, err = e.orgs.ActiveMembers(ctx, orgOwner)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("organization %s member lookup: %w", orgOwner, err))
				return
			}
			orgMembers[orgOwner] = members
		}
		for _, member := range members {
			merge(collapsed, models.Match{
				Subscriber: member,
				Severity:   severity,
				Event:      event,
				ViaOrg:     orgOwner,
			})
		}
		return
	}

	if owner == "" {
		return
	}

	sub, err := e.subs.GetByID(ctx, owner)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("subscriber %s lookup: %w", owner, err))
		return
	}
	if sub == nil || !sub.Active {
		return
	}

	merge(collapsed, models.Match{
		Subscriber: *sub,
		Severity:   severity,
		Event:      event,
	})
}

// merge keeps a single match per subscriber at the highest severity seen. On
// equal severity a directly-owned match outranks an organization-derived one.
func merge(collapsed map[models.SubscriberID]models.Match, m models.Match) {
	existing, ok := collapsed[m.Subscriber.ID]
	if !ok {
		collapsed[m.Subscriber.ID] = m
		return
	}
	if m.Severity > existing.Severity {
		collapsed[m.Subscriber.ID] = m
		return
	}
	if m.Severity == existing.Severity && existing.ViaOrg != "" && m.ViaOrg == "" {
		collapsed[m.Subscriber.ID] = m
	}
}
