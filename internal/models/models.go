// Package models defines the view-model records served to the GTS portals.
//
// Rows travel through the store as plain JSON objects; these types give the
// dashboards and fixtures a typed view of the same shapes. References between
// records (a deal's client_id, a booking's fleet_id) are informal string ids
// with no enforced integrity.
package models

// Table names.
const (
	TableUsers      = "users"
	TableClients    = "clients"
	TableDeals      = "deals"
	TableActivities = "activities"
	TableBookings   = "bookings"
	TableFleet      = "fleet"
	TablePartners   = "partners"
	TableRevenue    = "revenue"
	TableWeather    = "weather"
)

// Tables lists every table the store holds, in seed order.
var Tables = []string{
	TableUsers,
	TableClients,
	TableDeals,
	TableActivities,
	TableBookings,
	TableFleet,
	TablePartners,
	TableRevenue,
	TableWeather,
}

// IsTable reports whether name is a known table.
func IsTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

// Common row fields.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Base holds the fields every stored row carries.
type Base struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Portal roles.
const (
	RoleAdmin      = "admin"
	RoleCRM        = "crm"
	RolePartner    = "partner"
	RoleContractor = "contractor"
	RoleLoyalty    = "loyalty"
	RoleConcierge  = "concierge"
)

// User is a portal account.
type User struct {
	Base
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	PasswordHash string `json:"password_hash,omitempty"`
	PartnerID    string `json:"partner_id,omitempty"`
}

// Client statuses.
const (
	ClientLead     = "lead"
	ClientActive   = "active"
	ClientVIP      = "vip"
	ClientInactive = "inactive"
)

// Client is a CRM / loyalty-club customer.
type Client struct {
	Base
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	Status        string  `json:"status"`
	LoyaltyTier   string  `json:"loyalty_tier"`
	LoyaltyPoints float64 `json:"loyalty_points"`
	TotalSpent    float64 `json:"total_spent"`
	ManagerID     string  `json:"manager_id,omitempty"`
}

// Deal stages.
const (
	DealNew         = "new"
	DealQualified   = "qualified"
	DealProposal    = "proposal"
	DealNegotiation = "negotiation"
	DealWon         = "won"
	DealLost        = "lost"
)

// Deal is a sales opportunity tied to a client.
type Deal struct {
	Base
	ClientID    string  `json:"client_id"`
	Title       string  `json:"title"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Stage       string  `json:"stage"`
	Probability float64 `json:"probability"`
	CloseDate   string  `json:"close_date,omitempty"`
	OwnerID     string  `json:"owner_id,omitempty"`
}

// Open reports whether the deal is still in the pipeline.
func (d Deal) Open() bool {
	return d.Stage != DealWon && d.Stage != DealLost
}

// Activity is a CRM timeline entry (call, meeting, note, email).
type Activity struct {
	Base
	ClientID string `json:"client_id"`
	DealID   string `json:"deal_id,omitempty"`
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	DueAt    string `json:"due_at,omitempty"`
	Done     bool   `json:"done"`
}

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingActive    = "active"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Booking is a rental reservation of a fleet item.
type Booking struct {
	Base
	ClientID  string  `json:"client_id"`
	FleetID   string  `json:"fleet_id"`
	PartnerID string  `json:"partner_id,omitempty"`
	StartAt   string  `json:"start_at"`
	EndAt     string  `json:"end_at"`
	Status    string  `json:"status"`
	Total     float64 `json:"total"`
	Location  string  `json:"location,omitempty"`
}

// Fleet statuses.
const (
	FleetAvailable   = "available"
	FleetBooked      = "booked"
	FleetMaintenance = "maintenance"
)

// FleetItem is a rentable vehicle (yacht, helicopter, buggy, car).
type FleetItem struct {
	Base
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Status    string  `json:"status"`
	DailyRate float64 `json:"daily_rate"`
	Capacity  float64 `json:"capacity"`
	Location  string  `json:"location"`
	PartnerID string  `json:"partner_id,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// Partner is a brand or fleet partner.
type Partner struct {
	Base
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Tier           string  `json:"tier"`
	Status         string  `json:"status"`
	CommissionRate float64 `json:"commission_rate"`
	ContactEmail   string  `json:"contact_email,omitempty"`
}

// RevenueRow is one month of revenue attributed to a partner and category.
type RevenueRow struct {
	Base
	Month     string  `json:"month"`
	PartnerID string  `json:"partner_id,omitempty"`
	Category  string  `json:"category"`
	Amount    float64 `json:"amount"`
	Bookings  float64 `json:"bookings"`
}

// WeatherSnapshot is the conditions report shown by the concierge portal.
type WeatherSnapshot struct {
	Base
	Location    string  `json:"location"`
	ObservedAt  string  `json:"observed_at"`
	TempC       float64 `json:"temp_c"`
	WindKnots   float64 `json:"wind_knots"`
	WaveHeightM float64 `json:"wave_height_m"`
	Conditions  string  `json:"conditions"`
}
