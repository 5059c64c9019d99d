package models

// Opaque identifier types for domain entities. Upstream feeds and the
// persistence layer each have their own native key formats; the core only ever
// passes these around and never inspects their contents.
type (
	// SubscriberID identifies a single subscriber (user).
	SubscriberID string

	// OrganizationID identifies an organization of subscribers.
	OrganizationID string

	// ParcelID identifies a tracked land parcel.
	ParcelID string

	// WellID is the state-assigned well identifier (API number) carried on
	// activity events and tracked-well records.
	WellID string
)

// String implementations keep log fields readable.
func (id SubscriberID) String() string   { return string(id) }
func (id OrganizationID) String() string { return string(id) }
func (id ParcelID) String() string       { return string(id) }
func (id WellID) String() string         { return string(id) }
