package models

// NotificationMode is a subscriber's (or organization's) delivery preference.
type NotificationMode string

const (
	ModeImmediate       NotificationMode = "IMMEDIATE"
	ModeDailyDigest     NotificationMode = "DAILY_DIGEST"
	ModeWeeklyDigest    NotificationMode = "WEEKLY_DIGEST"
	ModeImmediateWeekly NotificationMode = "IMMEDIATE_AND_WEEKLY_DIGEST"
	ModeNone            NotificationMode = "NONE"

	// ModeUseOrgDefault is a subscriber-level sentinel meaning "defer to my
	// organization's default". It is never a valid effective mode.
	ModeUseOrgDefault NotificationMode = "USE_ORG_DEFAULT"
)

// Subscriber is a notification recipient. Override is empty when the
// subscriber has never expressed a preference.
type Subscriber struct {
	ID       SubscriberID
	Email    string
	Active   bool
	Override NotificationMode
	Org      OrganizationID // empty when the subscriber belongs to no organization
}

// Organization groups subscribers that share holdings. When AllowOverride is
// false the organization default always wins over member preferences.
type Organization struct {
	ID            OrganizationID
	DefaultMode   NotificationMode
	AllowOverride bool
}

// Parcel is a tracked land parcel. Exactly one of Owner and OrgOwner is set.
type Parcel struct {
	ID              ParcelID
	Owner           SubscriberID
	OrgOwner        OrganizationID
	Location        Coordinate
	MonitorAdjacent bool
	Active          bool
}

// OrgOwned reports whether the parcel belongs to an organization rather than a
// single subscriber.
func (p Parcel) OrgOwned() bool { return p.OrgOwner != "" }

// TrackedWell is a well a subscriber or organization follows by identifier,
// independent of any parcel.
type TrackedWell struct {
	Owner    SubscriberID
	OrgOwner OrganizationID
	WellID   WellID
	Active   bool
}

// OrgOwned reports whether the tracked well belongs to an organization.
func (w TrackedWell) OrgOwned() bool { return w.OrgOwner != "" }
