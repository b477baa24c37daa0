package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetcmd/internal/model"
)

// Memory is a simple in-memory store used for tests and when no DATABASE_URL
// is set. A single mutex serializes every Apply, which is what gives the
// batch its all-or-nothing and linearizable behavior.
type Memory struct {
	mu       sync.Mutex
	vehicles map[string]model.Vehicle
	drivers  map[string]model.Driver
	trips    map[string]model.Trip
	maint    map[string]model.MaintenanceRecord
	// insertion order per entity, for stable cursor listing
	vehicleIDs []string
	driverIDs  []string
	tripIDs    []string
	maintIDs   []string

	subs       []model.Subscription
	deliveries map[string]*memDelivery
	deliveryIDs []string
}

func NewMemory() *Memory {
	return &Memory{
		vehicles:   map[string]model.Vehicle{},
		drivers:    map[string]model.Driver{},
		trips:      map[string]model.Trip{},
		maint:      map[string]model.MaintenanceRecord{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

func (m *Memory) CreateVehicle(ctx context.Context, in model.VehicleIn) (model.Vehicle, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	v := model.Vehicle{ID: uuid.New().String(), Name: in.Name, Plate: in.Plate, MaxLoad: in.MaxLoad, Status: in.Status}
	if v.Status == "" { v.Status = model.VehicleAvailable }
	m.vehicles[v.ID] = v
	m.vehicleIDs = append(m.vehicleIDs, v.ID)
	return v, nil
}

func (m *Memory) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok { return model.Vehicle{}, ErrNotFound }
	return v, nil
}

func (m *Memory) ListVehicles(ctx context.Context, status, cursor string, limit int) ([]model.Vehicle, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := []model.Vehicle{}
	next := ""
	for _, id := range paged(m.vehicleIDs, cursor) {
		v := m.vehicles[id]
		if status != "" && v.Status != status { continue }
		if len(out) >= limit { next = out[len(out)-1].ID; break }
		out = append(out, v)
	}
	return out, next, nil
}

func (m *Memory) CreateDriver(ctx context.Context, in model.DriverIn) (model.Driver, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	d := model.Driver{ID: uuid.New().String(), Name: in.Name, LicenseStatus: in.LicenseStatus, SafetyScore: in.SafetyScore, DutyStatus: in.DutyStatus}
	if d.LicenseStatus == "" { d.LicenseStatus = model.LicenseValid }
	if d.DutyStatus == "" { d.DutyStatus = model.DutyAvailable }
	m.drivers[d.ID] = d
	m.driverIDs = append(m.driverIDs, d.ID)
	return d, nil
}

func (m *Memory) GetDriver(ctx context.Context, id string) (model.Driver, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok { return model.Driver{}, ErrNotFound }
	return d, nil
}

func (m *Memory) ListDrivers(ctx context.Context, cursor string, limit int) ([]model.Driver, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := []model.Driver{}
	next := ""
	for _, id := range paged(m.driverIDs, cursor) {
		if len(out) >= limit { next = out[len(out)-1].ID; break }
		out = append(out, m.drivers[id])
	}
	return out, next, nil
}

func (m *Memory) GetTrip(ctx context.Context, id string) (model.Trip, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	t, ok := m.trips[id]
	if !ok { return model.Trip{}, ErrNotFound }
	return t, nil
}

func (m *Memory) ListTrips(ctx context.Context, status, cursor string, limit int) ([]model.Trip, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := []model.Trip{}
	next := ""
	for _, id := range paged(m.tripIDs, cursor) {
		t := m.trips[id]
		if status != "" && t.Status != status { continue }
		if len(out) >= limit { next = out[len(out)-1].ID; break }
		out = append(out, t)
	}
	return out, next, nil
}

func (m *Memory) GetMaintenanceRecord(ctx context.Context, id string) (model.MaintenanceRecord, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	r, ok := m.maint[id]
	if !ok { return model.MaintenanceRecord{}, ErrNotFound }
	return r, nil
}

func (m *Memory) ListMaintenanceRecords(ctx context.Context, vehicleID, cursor string, limit int) ([]model.MaintenanceRecord, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := []model.MaintenanceRecord{}
	next := ""
	for _, id := range paged(m.maintIDs, cursor) {
		r := m.maint[id]
		if vehicleID != "" && r.VehicleID != vehicleID { continue }
		if len(out) >= limit { next = out[len(out)-1].ID; break }
		out = append(out, r)
	}
	return out, next, nil
}

// Apply validates every guard under the lock before touching anything, so a
// miss anywhere leaves the store untouched.
func (m *Memory) Apply(ctx context.Context, b Batch) error {
	m.mu.Lock(); defer m.mu.Unlock()

	for _, sw := range b.Trips {
		t, ok := m.trips[sw.ID]
		if !ok { return ErrNotFound }
		if !sw.allows(t.Status) { return &ConflictError{Entity: "trip", ID: sw.ID, Have: t.Status} }
	}
	for _, sw := range b.Vehicles {
		v, ok := m.vehicles[sw.ID]
		if !ok { return ErrNotFound }
		if !sw.allows(v.Status) { return &ConflictError{Entity: "vehicle", ID: sw.ID, Have: v.Status} }
	}
	for _, sw := range b.Drivers {
		d, ok := m.drivers[sw.ID]
		if !ok { return ErrNotFound }
		if !sw.allows(d.DutyStatus) { return &ConflictError{Entity: "driver", ID: sw.ID, Have: d.DutyStatus} }
	}
	for _, sw := range b.Maintenance {
		r, ok := m.maint[sw.ID]
		if !ok { return ErrNotFound }
		if !sw.allows(r.Status) { return &ConflictError{Entity: "maintenance", ID: sw.ID, Have: r.Status} }
	}

	for _, t := range b.InsertTrips {
		m.trips[t.ID] = t
		m.tripIDs = append(m.tripIDs, t.ID)
	}
	for _, r := range b.InsertMaintenance {
		m.maint[r.ID] = r
		m.maintIDs = append(m.maintIDs, r.ID)
	}
	for _, sw := range b.Trips {
		t := m.trips[sw.ID]
		t.Status = sw.To
		m.trips[sw.ID] = t
	}
	for _, sw := range b.Vehicles {
		v := m.vehicles[sw.ID]
		v.Status = sw.To
		m.vehicles[sw.ID] = v
	}
	for _, sw := range b.Drivers {
		d := m.drivers[sw.ID]
		d.DutyStatus = sw.To
		m.drivers[sw.ID] = d
	}
	for _, sw := range b.Maintenance {
		r := m.maint[sw.ID]
		r.Status = sw.To
		m.maint[sw.ID] = r
	}
	return nil
}

// Webhook subscriptions

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i := range m.subs { if m.subs[i].ID == cursor { start = i + 1; break } }
	}
	if limit <= 0 { limit = 100 }
	end := start + limit
	if end > len(m.subs) { end = len(m.subs) }
	items := append([]model.Subscription(nil), m.subs[start:end]...)
	next := ""
	if end < len(m.subs) { next = m.subs[end-1].ID }
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock(); defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	found := false
	for _, s := range m.subs {
		if s.ID == id { found = true; continue }
		out = append(out, s)
	}
	if !found { return ErrNotFound }
	m.subs = out
	return nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType || e == "*" { out = append(out, s); break }
		}
	}
	return out, nil
}

// Webhook deliveries

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"}, NextAttemptAt: time.Now()}
	m.deliveries[id] = d
	m.deliveryIDs = append(m.deliveryIDs, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock(); defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliveryIDs {
		d := m.deliveries[id]
		if d == nil { continue }
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit { break }
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil { return nil }
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock(); defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

// paged returns ids starting after cursor, preserving insertion order.
func paged(ids []string, cursor string) []string {
	if cursor == "" { return ids }
	for i, id := range ids {
		if id == cursor { return ids[i+1:] }
	}
	return nil
}
