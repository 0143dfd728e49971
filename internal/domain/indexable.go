package domain

// Indexed is implemented by every entity the store indexes by status, owner
// and geohash prefix (SPEC_FULL.md §4.1). Entities with no natural owner or
// geohash (UserProfile's "owner" is itself; AuditEvent and Notification have
// no status) return "" for the fields that don't apply.
type Indexed interface {
	IndexStatus() Status
	IndexOwner() string
	IndexGeohash() string
}

func (u *UserProfile) IndexStatus() Status  { return "" }
func (u *UserProfile) IndexOwner() string   { return u.ID }
func (u *UserProfile) IndexGeohash() string { return u.Geohash }

func (l *SurplusListing) IndexStatus() Status  { return l.Status }
func (l *SurplusListing) IndexOwner() string   { return l.SupplierID }
func (l *SurplusListing) IndexGeohash() string { return l.Geohash }

func (d *DemandPost) IndexStatus() Status  { return d.Status }
func (d *DemandPost) IndexOwner() string   { return d.RecipientID }
func (d *DemandPost) IndexGeohash() string { return d.Geohash }

func (m *MatchRecommendation) IndexStatus() Status  { return m.Status }
func (m *MatchRecommendation) IndexOwner() string   { return "" }
func (m *MatchRecommendation) IndexGeohash() string { return "" }

func (t *DeliveryTask) IndexStatus() Status  { return t.Status }
func (t *DeliveryTask) IndexOwner() string   { return t.DriverID }
func (t *DeliveryTask) IndexGeohash() string { return "" }

func (r *RoutePlan) IndexStatus() Status  { return "" }
func (r *RoutePlan) IndexOwner() string   { return "" }
func (r *RoutePlan) IndexGeohash() string { return "" }

func (a *AuditEvent) IndexStatus() Status  { return "" }
func (a *AuditEvent) IndexOwner() string   { return a.Actor }
func (a *AuditEvent) IndexGeohash() string { return "" }

func (n *Notification) IndexStatus() Status  { return "" }
func (n *Notification) IndexOwner() string   { return n.UserID }
func (n *Notification) IndexGeohash() string { return "" }
