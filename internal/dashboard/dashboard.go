// Package dashboard computes the statistics shown by the role portals.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/starford/gts-portal/internal/apperr"
	"github.com/starford/gts-portal/internal/mockstore"
	"github.com/starford/gts-portal/internal/models"
)

// Roles that have a dashboard.
var Roles = []string{
	models.RoleCRM,
	models.RolePartner,
	models.RoleContractor,
	models.RoleLoyalty,
	models.RoleConcierge,
}

const listSize = 5

// Store is the read side of the mock data store.
type Store interface {
	Select(ctx context.Context, table string, q mockstore.Query) ([]mockstore.Record, error)
}

// Dashboard is the payload of one role portal.
type Dashboard struct {
	Role        string `json:"role"`
	GeneratedAt string `json:"generated_at"`
	Data        any    `json:"data"`
}

// CRM is the sales portal.
type CRM struct {
	ClientsByStatus  map[string]int     `json:"clients_by_status"`
	PipelineByStage  map[string]float64 `json:"pipeline_by_stage"`
	PipelineTotal    float64            `json:"pipeline_total"`
	WonRevenue       float64            `json:"won_revenue"`
	RecentActivities []models.Activity  `json:"recent_activities"`
}

// Partner is the partner portal.
type Partner struct {
	PartnersByTier   map[string]int     `json:"partners_by_tier"`
	RevenueByPartner map[string]float64 `json:"revenue_by_partner"`
	RevenueTotal     float64            `json:"revenue_total"`
	CommissionTotal  float64            `json:"commission_total"`
}

// Contractor is the fleet contractor portal.
type Contractor struct {
	FleetByStatus    map[string]int   `json:"fleet_by_status"`
	Utilisation      float64          `json:"utilisation"`
	UpcomingBookings []models.Booking `json:"upcoming_bookings"`
}

// Loyalty is the client club portal.
type Loyalty struct {
	ClientsByTier map[string]int  `json:"clients_by_tier"`
	TotalPoints   float64         `json:"total_points"`
	TopClients    []models.Client `json:"top_clients"`
}

// Concierge is the concierge portal.
type Concierge struct {
	BookingsByStatus map[string]int           `json:"bookings_by_status"`
	NextBookings     []models.Booking         `json:"next_bookings"`
	Weather          []models.WeatherSnapshot `json:"weather"`
}

// Builder computes dashboards from the store.
type Builder struct {
	store Store
	now   func() time.Time
}

// NewBuilder creates a Builder. now defaults to time.Now.
func NewBuilder(store Store, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{store: store, now: now}
}

// Build computes the dashboard of role.
func (b *Builder) Build(ctx context.Context, role string) (*Dashboard, error) {
	var (
		data any
		err  error
	)
	switch role {
	case models.RoleCRM:
		data, err = b.crm(ctx)
	case models.RolePartner:
		data, err = b.partner(ctx)
	case models.RoleContractor:
		data, err = b.contractor(ctx)
	case models.RoleLoyalty:
		data, err = b.loyalty(ctx)
	case models.RoleConcierge:
		data, err = b.concierge(ctx)
	default:
		return nil, fmt.Errorf("%w: dashboard %q", apperr.ErrNotFound, role)
	}
	if err != nil {
		return nil, fmt.Errorf("dashboard: %s: %w", role, err)
	}
	return &Dashboard{
		Role:        role,
		GeneratedAt: b.now().UTC().Format(time.RFC3339),
		Data:        data,
	}, nil
}

func (b *Builder) crm(ctx context.Context) (*CRM, error) {
	clients, err := selectAs[models.Client](ctx, b.store, models.TableClients, mockstore.Query{})
	if err != nil {
		return nil, err
	}
	deals, err := selectAs[models.Deal](ctx, b.store, models.TableDeals, mockstore.Query{})
	if err != nil {
		return nil, err
	}
	activities, err := selectAs[models.Activity](ctx, b.store, models.TableActivities, mockstore.Query{
		OrderBy: []mockstore.Order{
			{Field: models.FieldCreatedAt, Desc: true},
			{Field: "due_at", Desc: true},
		},
		Limit: listSize,
	})
	if err != nil {
		return nil, err
	}

	out := &CRM{
		ClientsByStatus:  map[string]int{},
		PipelineByStage:  map[string]float64{},
		RecentActivities: activities,
	}
	for _, c := range clients {
		out.ClientsByStatus[c.Status]++
	}
	for _, d := range deals {
		switch {
		case d.Stage == models.DealWon:
			out.WonRevenue += d.Amount
		case d.Open():
			out.PipelineByStage[d.Stage] += d.Amount
			out.PipelineTotal += d.Amount
		}
	}
	return out, nil
}

func (b *Builder) partner(ctx context.Context) (*Partner, error) {
	partners, err := selectAs[models.Partner](ctx, b.store, models.TablePartners, mockstore.Query{})
	if err != nil {
		return nil, err
	}
	revenue, err := selectAs[models.RevenueRow](ctx, b.store, models.TableRevenue, mockstore.Query{})
	if err != nil {
		return nil, err
	}

	out := &Partner{
		PartnersByTier:   map[string]int{},
		RevenueByPartner: map[string]float64{},
	}
	rates := make(map[string]float64, len(partners))
	for _, p := range partners {
		out.PartnersByTier[p.Tier]++
		rates[p.ID] = p.CommissionRate
	}
	for _, r := range revenue {
		out.RevenueTotal += r.Amount
		if r.PartnerID == "" {
			continue
		}
		out.RevenueByPartner[r.PartnerID] += r.Amount
		out.CommissionTotal += r.Amount * rates[r.PartnerID]
	}
	return out, nil
}

func (b *Builder) contractor(ctx context.Context) (*Contractor, error) {
	fleet, err := selectAs[models.FleetItem](ctx, b.store, models.TableFleet, mockstore.Query{})
	if err != nil {
		return nil, err
	}
	upcoming, err := b.upcomingBookings(ctx)
	if err != nil {
		return nil, err
	}

	out := &Contractor{
		FleetByStatus:    map[string]int{},
		UpcomingBookings: upcoming,
	}
	for _, f := range fleet {
		out.FleetByStatus[f.Status]++
	}
	if len(fleet) > 0 {
		out.Utilisation = float64(out.FleetByStatus[models.FleetBooked]) / float64(len(fleet))
	}
	return out, nil
}

func (b *Builder) loyalty(ctx context.Context) (*Loyalty, error) {
	clients, err := selectAs[models.Client](ctx, b.store, models.TableClients, mockstore.Query{
		OrderBy: []mockstore.Order{{Field: "loyalty_points", Desc: true}},
	})
	if err != nil {
		return nil, err
	}

	out := &Loyalty{ClientsByTier: map[string]int{}}
	for _, c := range clients {
		if c.LoyaltyTier != "" {
			out.ClientsByTier[c.LoyaltyTier]++
		}
		out.TotalPoints += c.LoyaltyPoints
	}
	out.TopClients = clients[:min(listSize, len(clients))]
	return out, nil
}

func (b *Builder) concierge(ctx context.Context) (*Concierge, error) {
	bookings, err := selectAs[models.Booking](ctx, b.store, models.TableBookings, mockstore.Query{})
	if err != nil {
		return nil, err
	}
	upcoming, err := b.upcomingBookings(ctx)
	if err != nil {
		return nil, err
	}
	weather, err := selectAs[models.WeatherSnapshot](ctx, b.store, models.TableWeather, mockstore.Query{})
	if err != nil {
		return nil, err
	}

	out := &Concierge{
		BookingsByStatus: map[string]int{},
		NextBookings:     upcoming,
		Weather:          latestWeather(weather),
	}
	for _, bk := range bookings {
		out.BookingsByStatus[bk.Status]++
	}
	return out, nil
}

// upcomingBookings returns the next pending or confirmed bookings that start
// after now, soonest first.
func (b *Builder) upcomingBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := selectAs[models.Booking](ctx, b.store, models.TableBookings, mockstore.Query{
		Where: map[string]any{"status": []string{models.BookingPending, models.BookingConfirmed}},
	})
	if err != nil {
		return nil, err
	}
	now := b.now()
	out := bookings[:0]
	for _, bk := range bookings {
		if start, ok := parseTime(bk.StartAt); ok && start.After(now) {
			out = append(out, bk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := parseTime(out[i].StartAt)
		c, _ := parseTime(out[j].StartAt)
		return a.Before(c)
	})
	return out[:min(listSize, len(out))], nil
}

// latestWeather keeps the most recent snapshot per location, ordered by
// location.
func latestWeather(rows []models.WeatherSnapshot) []models.WeatherSnapshot {
	latest := map[string]models.WeatherSnapshot{}
	for _, w := range rows {
		cur, ok := latest[w.Location]
		if !ok {
			latest[w.Location] = w
			continue
		}
		a, _ := parseTime(w.ObservedAt)
		c, _ := parseTime(cur.ObservedAt)
		if a.After(c) {
			latest[w.Location] = w
		}
	}
	out := make([]models.WeatherSnapshot, 0, len(latest))
	for _, w := range latest {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// timeLayouts are the accepted date forms, tried in order. Zone-less values
// are UTC.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", time.DateOnly}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func selectAs[T any](ctx context.Context, s Store, table string, q mockstore.Query) ([]T, error) {
	rows, err := s.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(rows))
	for i, r := range rows {
		if err := r.Decode(&out[i]); err != nil {
			return nil, fmt.Errorf("decode %s row %s: %w", table, r.ID(), err)
		}
	}
	return out, nil
}
