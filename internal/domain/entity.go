package domain

import "time"

// Entity is implemented by every persisted aggregate. The store package
// uses it to enforce the optimistic-versioning contract (SPEC_FULL.md §4.1)
// generically across entity types.
type Entity interface {
	EntityID() string
	EntityType() string
	EntityVersion() int
	SetVersion(v int)
	Timestamps() (createdAt, updatedAt time.Time)
	SetTimestamps(createdAt, updatedAt time.Time)
}

// Base is embedded by every entity struct to provide the common id/version/
// timestamp fields and satisfy Entity without repeating bookkeeping methods.
type Base struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *Base) EntityID() string       { return b.ID }
func (b *Base) EntityVersion() int     { return b.Version }
func (b *Base) SetVersion(v int)       { b.Version = v }
func (b *Base) Timestamps() (time.Time, time.Time) {
	return b.CreatedAt, b.UpdatedAt
}
func (b *Base) SetTimestamps(createdAt, updatedAt time.Time) {
	b.CreatedAt = createdAt
	b.UpdatedAt = updatedAt
}

// Coordinates is a decimal-degrees lat/lon pair.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// TimeWindow is an inclusive [Start, End] interval used for pickup and
// acceptance windows.
type TimeWindow struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

// Overlap returns the duration the two windows share, or 0 if they don't
// overlap.
func (w TimeWindow) Overlap(other TimeWindow) time.Duration {
	start := w.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := w.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// NotificationPreference controls whether a given notification type is
// delivered to a user and on which channels.
type NotificationPreference struct {
	Type     string   `json:"type"`
	Enabled  bool     `json:"enabled"`
	Channels []string `json:"channels"`
}

// UserProfile is the identity/role/preference aggregate (SPEC_FULL.md §3).
type UserProfile struct {
	Base
	Email                    string                    `json:"email" validate:"required,email"`
	Name                     string                    `json:"name" validate:"required"`
	Roles                    []Role                    `json:"roles" validate:"required,min=1"`
	Address                  string                    `json:"address,omitempty"`
	Coordinates              *Coordinates              `json:"coordinates,omitempty"`
	Geohash                  string                    `json:"geohash,omitempty"`
	NotificationPreferences  []NotificationPreference  `json:"notificationPreferences,omitempty"`
	ReliabilityScore         float64                   `json:"reliabilityScore" validate:"gte=0,lte=100"`
	DeliveriesCompleted      int                       `json:"deliveriesCompleted"`
	DeliveriesFailed         int                       `json:"deliveriesFailed"`
}

func (u *UserProfile) EntityType() string { return "UserProfile" }

// HasRole reports whether the profile holds role r.
func (u *UserProfile) HasRole(r Role) bool {
	for _, have := range u.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// PreferenceFor returns the notification preference for notification type t,
// defaulting to enabled-on-all-channels when the user has not configured one.
func (u *UserProfile) PreferenceFor(t string) NotificationPreference {
	for _, p := range u.NotificationPreferences {
		if p.Type == t {
			return p
		}
	}
	return NotificationPreference{Type: t, Enabled: true, Channels: []string{"email"}}
}

// HandlingFlags carries a listing's special-handling attributes.
type HandlingFlags struct {
	RequiresRefrigeration bool     `json:"requiresRefrigeration"`
	HandlingRequirements  []string `json:"handlingRequirements,omitempty"`
}

// SurplusListing is a supplier's offer of surplus goods (SPEC_FULL.md §3).
type SurplusListing struct {
	Base
	SupplierID       string           `json:"supplierId" validate:"required"`
	Title            string           `json:"title" validate:"required"`
	Description      string           `json:"description,omitempty"`
	Category         Category         `json:"category" validate:"required"`
	Quantity         float64          `json:"quantity" validate:"gt=0"`
	Unit             string           `json:"unit" validate:"required"`
	Address          string           `json:"address" validate:"required"`
	Coordinates      *Coordinates     `json:"coordinates,omitempty"`
	Geohash          string           `json:"geohash,omitempty"`
	PickupWindow     TimeWindow       `json:"pickupWindow"`
	ExpirationDate   *time.Time       `json:"expirationDate,omitempty"`
	Handling         HandlingFlags    `json:"handling"`
	QualityNotes     string           `json:"qualityNotes,omitempty"`
	Status           Status           `json:"status" validate:"required"`
	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus,omitempty"`
	AIRiskScore      *float64         `json:"aiRiskScore,omitempty"`
	AIFlags          []string         `json:"aiFlags,omitempty"`
}

func (l *SurplusListing) EntityType() string { return "SurplusListing" }

// DemandPost is a recipient's need, with a capacity cap (SPEC_FULL.md §3).
type DemandPost struct {
	Base
	RecipientID      string       `json:"recipientId" validate:"required"`
	Categories       []Category   `json:"categories" validate:"required,min=1"`
	QuantityNeeded   float64      `json:"quantityNeeded" validate:"gt=0"`
	Capacity         float64      `json:"capacity" validate:"gt=0"`
	Address          string       `json:"address" validate:"required"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	Geohash          string       `json:"geohash,omitempty"`
	AcceptanceWindow TimeWindow   `json:"acceptanceWindow"`
	PriorityLevel    int          `json:"priorityLevel" validate:"gte=0,lte=10"`
	Status           Status       `json:"status" validate:"required"`
}

func (d *DemandPost) EntityType() string { return "DemandPost" }

// ScoreBreakdown is the per-criterion sub-score vector the matching engine
// produces for a candidate pair (SPEC_FULL.md §4.5), each in [0,1].
type ScoreBreakdown struct {
	Distance    float64 `json:"distance"`
	Time        float64 `json:"time"`
	Category    float64 `json:"category"`
	Capacity    float64 `json:"capacity"`
	Reliability float64 `json:"reliability"`
}

// MatchRecommendation links exactly one listing to one demand (SPEC_FULL.md §3).
type MatchRecommendation struct {
	Base
	ListingID         string           `json:"listingId" validate:"required"`
	DemandID          string           `json:"demandId" validate:"required"`
	Score             float64          `json:"score" validate:"gte=0,lte=100"`
	ScoreBreakdown    ScoreBreakdown   `json:"scoreBreakdown"`
	DistanceMiles     float64          `json:"distanceMiles"`
	Status            Status           `json:"status" validate:"required"`
	ComplianceStatus  ComplianceStatus `json:"complianceStatus"`
	ComplianceChecks  []CheckResult    `json:"complianceChecks,omitempty"`
	ComplianceVersion string           `json:"complianceVersion,omitempty"`
	RoutePlanID       string           `json:"routePlanId,omitempty"`
}

func (m *MatchRecommendation) EntityType() string { return "MatchRecommendation" }

// DeliveryTask is the operational plan produced when a match is scheduled
// (SPEC_FULL.md §3).
type DeliveryTask struct {
	Base
	MatchID           string       `json:"matchId" validate:"required"`
	ListingID         string       `json:"listingId" validate:"required"`
	DemandID          string       `json:"demandId" validate:"required"`
	DriverID          string       `json:"driverId" validate:"required"`
	IdempotencyKey    string       `json:"idempotencyKey" validate:"required"`
	Status            Status       `json:"status" validate:"required"`
	ScheduledPickupAt time.Time    `json:"scheduledPickupAt"`
	ScheduledDeliverAt time.Time   `json:"scheduledDeliverAt"`
	ActualPickupAt    *time.Time   `json:"actualPickupAt,omitempty"`
	ActualDeliverAt   *time.Time   `json:"actualDeliverAt,omitempty"`
	CurrentLocation   *Coordinates `json:"currentLocation,omitempty"`
}

func (t *DeliveryTask) EntityType() string { return "DeliveryTask" }

// RoutePlan is an immutable record of one route computation (SPEC_FULL.md §3).
type RoutePlan struct {
	Base
	FromCoordinates Coordinates    `json:"fromCoordinates"`
	ToCoordinates   Coordinates    `json:"toCoordinates"`
	DistanceMiles   float64        `json:"distanceMiles"`
	DurationMinutes float64        `json:"durationMinutes"`
	Polyline        string         `json:"polyline,omitempty"`
	Provider        string         `json:"provider"`
	ProviderStatus  ProviderStatus `json:"providerStatus"`
}

func (r *RoutePlan) EntityType() string { return "RoutePlan" }

// Notification is a persisted, user-visible event record (SPEC_FULL.md §3).
type Notification struct {
	Base
	UserID          string   `json:"userId" validate:"required"`
	Type            string   `json:"type" validate:"required"`
	Title           string   `json:"title" validate:"required"`
	Message         string   `json:"message" validate:"required"`
	EntityTypeName  string   `json:"entityType,omitempty"`
	EntityIDValue   string   `json:"entityId,omitempty"`
	DeliveryChannels []string `json:"deliveryChannels,omitempty"`
	Read            bool     `json:"read"`
}

func (n *Notification) EntityType() string { return "Notification" }
