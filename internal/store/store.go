package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetcmd/internal/model"
)

// Store is the persistence interface used by the dispatch core and the API
// server. Reads return snapshots; all multi-record status writes go through
// Apply so they land atomically.
type Store interface {
	// Vehicles
	CreateVehicle(ctx context.Context, in model.VehicleIn) (model.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	ListVehicles(ctx context.Context, status, cursor string, limit int) ([]model.Vehicle, string, error)

	// Drivers
	CreateDriver(ctx context.Context, in model.DriverIn) (model.Driver, error)
	GetDriver(ctx context.Context, id string) (model.Driver, error)
	ListDrivers(ctx context.Context, cursor string, limit int) ([]model.Driver, string, error)

	// Trips
	GetTrip(ctx context.Context, id string) (model.Trip, error)
	ListTrips(ctx context.Context, status, cursor string, limit int) ([]model.Trip, string, error)

	// Maintenance records
	GetMaintenanceRecord(ctx context.Context, id string) (model.MaintenanceRecord, error)
	ListMaintenanceRecords(ctx context.Context, vehicleID, cursor string, limit int) ([]model.MaintenanceRecord, string, error)

	// Apply executes the batch as one atomic unit: either every insert and
	// status write lands, or none do. Concurrent Apply calls are serialized;
	// a guard miss fails the whole batch with *ConflictError.
	Apply(ctx context.Context, b Batch) error

	// Webhook subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

// StatusWrite updates the status field of one record. From lists the
// admissible current values; an empty From applies unconditionally. When the
// current value is not in From the whole batch fails with *ConflictError.
type StatusWrite struct {
	ID   string
	From []string
	To   string
}

// Batch is a set of entity mutations applied all-or-nothing. Drivers writes
// target the duty status field; the other slices target the record status.
type Batch struct {
	InsertTrips       []model.Trip
	InsertMaintenance []model.MaintenanceRecord
	Trips             []StatusWrite
	Vehicles          []StatusWrite
	Drivers           []StatusWrite
	Maintenance       []StatusWrite
}

func (sw StatusWrite) allows(current string) bool {
	if len(sw.From) == 0 {
		return true
	}
	for _, v := range sw.From {
		if v == current {
			return true
		}
	}
	return false
}

var ErrNotFound = errors.New("not found")

// ConflictError reports a guard miss inside Apply. Have is the value the
// record actually held, read under the same serialization as the write, so
// callers can map it to a domain error without a second read.
type ConflictError struct {
	Entity string
	ID     string
	Have   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: status %q does not satisfy write guard", e.Entity, e.ID, e.Have)
}
