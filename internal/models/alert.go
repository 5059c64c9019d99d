package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertKey is the natural dedup key for an alert: the same subscriber is not
// re-alerted for the same well and activity type while an existing record
// falls inside the dedup window.
type AlertKey struct {
	Subscriber   SubscriberID
	WellID       WellID
	ActivityType ActivityType
}

// AlertRecord is one append-only log entry recording that a subscriber was
// matched to an event. Records are never updated or deleted by the core.
type AlertRecord struct {
	ID         uuid.UUID
	Subscriber SubscriberID
	WellID     WellID
	Activity   ActivityType
	Severity   Severity
	DetectedAt time.Time
	CreatedAt  time.Time
}

// Key returns the dedup key for the record.
func (r AlertRecord) Key() AlertKey {
	return AlertKey{Subscriber: r.Subscriber, WellID: r.WellID, ActivityType: r.Activity}
}

// Cadence is a digest delivery schedule.
type Cadence string

const (
	CadenceDaily  Cadence = "DAILY"
	CadenceWeekly Cadence = "WEEKLY"
)

// AlertSummary is the rendered, self-contained description of one matched
// event. It is what gets queued for digests and embedded in immediate sends,
// so digest assembly never has to re-resolve the original event.
type AlertSummary struct {
	WellID       WellID       `json:"well_id"`
	WellName     string       `json:"well_name,omitempty"`
	ActivityType ActivityType `json:"activity_type"`
	Severity     Severity     `json:"severity"`
	Operator     string       `json:"operator,omitempty"`
	County       string       `json:"county,omitempty"`
	Location     string       `json:"location"`
	Headline     string       `json:"headline"`
	DetectedAt   time.Time    `json:"detected_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

// PendingNotification is one queued digest item. It transitions exactly once
// from unprocessed (ProcessedAt nil) to processed, and only after the email
// collaborator confirms delivery of the digest containing it.
type PendingNotification struct {
	ID          uuid.UUID
	Subscriber  SubscriberID
	Email       string
	Cadence     Cadence
	Summary     AlertSummary
	QueuedAt    time.Time
	ProcessedAt *time.Time
}

// ImmediatePayload is handed to the email collaborator for immediate-mode
// subscribers.
type ImmediatePayload struct {
	Email    string
	Severity Severity
	Summary  AlertSummary
}

// DigestPayload is one subscriber's grouped summary for a cadence tick.
// Groups is keyed by activity type; Highlights surfaces urgent items first.
type DigestPayload struct {
	Email      string
	Cadence    Cadence
	Groups     map[ActivityType][]AlertSummary
	Highlights []AlertSummary
}

// ItemCount returns the total number of grouped alerts in the payload.
func (p DigestPayload) ItemCount() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g)
	}
	return n
}

// FeedType identifies one upstream feed the freshness monitor watches.
type FeedType string

const (
	FeedPermits     FeedType = "PERMITS"
	FeedCompletions FeedType = "COMPLETIONS"
	FeedTransfers   FeedType = "TRANSFERS"
	FeedStatuses    FeedType = "STATUSES"
	FeedDockets     FeedType = "DOCKETS"
)

// FeedStatus is the persisted freshness baseline for one feed: when it was
// last fetched and when a genuinely new record was last observed.
type FeedStatus struct {
	Feed          FeedType
	LastCheckedAt time.Time
	LastNewRecord *time.Time // nil until the first new record establishes a baseline
}
