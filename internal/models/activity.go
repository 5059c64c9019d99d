package models

import "time"

// ActivityType enumerates the kinds of filings the ingestion collaborator
// produces events for.
type ActivityType string

const (
	ActivityNewPermit        ActivityType = "NEW_PERMIT"
	ActivityCompletion       ActivityType = "COMPLETION"
	ActivityOperatorTransfer ActivityType = "OPERATOR_TRANSFER"
	ActivityStatusChange     ActivityType = "STATUS_CHANGE"
	ActivityDocketFiling     ActivityType = "DOCKET_FILING"
)

// KnownActivityType reports whether t is one of the enumerated activity types.
func KnownActivityType(t ActivityType) bool {
	switch t {
	case ActivityNewPermit, ActivityCompletion, ActivityOperatorTransfer,
		ActivityStatusChange, ActivityDocketFiling:
		return true
	}
	return false
}

// ActivityEvent is one normalized filing produced by the ingestion
// collaborator. Events are immutable once created; the natural key ID is
// source system plus source record id.
type ActivityEvent struct {
	ID               string
	WellID           WellID
	ActivityType     ActivityType
	SurfaceLocation  Coordinate
	BottomHole       *Coordinate // set only for directional/horizontal wells
	Operator         string
	PreviousOperator string
	PreviousStatus   string
	NewStatus        string
	County           string
	DetectedAt       time.Time
	PermitExpiresAt  *time.Time // set on permit events when the filing carries one
}

// Horizontal reports whether the event carries a bottom-hole location in a
// different section than the surface location.
func (e ActivityEvent) Horizontal() bool {
	return e.BottomHole != nil && e.BottomHole.Key() != e.SurfaceLocation.Key()
}

// Severity ranks how directly an activity event concerns a subscriber's
// holdings. Higher values outrank lower ones when a subscriber matches more
// than one way.
type Severity int

const (
	SeverityTrackedWell Severity = iota + 1
	SeverityHorizontalPathAdjacent
	SeverityAdjacentSection
	SeverityHorizontalPathThroughProperty
	SeverityYourProperty
)

// String returns the wire name used in payloads and alert records.
func (s Severity) String() string {
	switch s {
	case SeverityYourProperty:
		return "YOUR_PROPERTY"
	case SeverityHorizontalPathThroughProperty:
		return "HORIZONTAL_PATH_THROUGH_PROPERTY"
	case SeverityAdjacentSection:
		return "ADJACENT_SECTION"
	case SeverityHorizontalPathAdjacent:
		return "HORIZONTAL_PATH_ADJACENT"
	case SeverityTrackedWell:
		return "TRACKED_WELL"
	default:
		return "UNKNOWN"
	}
}

// Match is one (subscriber, severity) pairing produced by the match engine for
// a single activity event. Organization-derived matches carry the organization
// ID for routing attribution; directly-owned matches leave it empty.
type Match struct {
	Subscriber Subscriber
	Severity   Severity
	Event      ActivityEvent
	ViaOrg     OrganizationID
}
