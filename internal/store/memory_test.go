package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcmd/internal/model"
)

func TestApplyGuardMissFailsWholeBatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v, err := m.CreateVehicle(ctx, model.VehicleIn{MaxLoad: 500})
	require.NoError(t, err)
	d, err := m.CreateDriver(ctx, model.DriverIn{DutyStatus: model.DutyAvailable})
	require.NoError(t, err)

	trip := model.Trip{ID: "t1", DriverID: d.ID, VehicleID: v.ID, CargoWeight: 100, Status: model.TripPending}
	require.NoError(t, m.Apply(ctx, Batch{InsertTrips: []model.Trip{trip}}))

	// vehicle guard expects On Trip but it is Available: nothing may change
	err = m.Apply(ctx, Batch{
		Trips:    []StatusWrite{{ID: "t1", From: []string{model.TripPending}, To: model.TripStarted}},
		Vehicles: []StatusWrite{{ID: v.ID, From: []string{model.VehicleOnTrip}, To: model.VehicleAvailable}},
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "vehicle", ce.Entity)
	assert.Equal(t, model.VehicleAvailable, ce.Have)

	got, err := m.GetTrip(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.TripPending, got.Status, "trip write must not land when a later guard misses")
}

func TestApplyUnknownIDFailsWholeBatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	v, err := m.CreateVehicle(ctx, model.VehicleIn{MaxLoad: 500})
	require.NoError(t, err)

	err = m.Apply(ctx, Batch{
		Vehicles: []StatusWrite{
			{ID: v.ID, To: model.VehicleOffline},
			{ID: "ghost", To: model.VehicleOffline},
		},
	})
	require.ErrorIs(t, err, ErrNotFound)

	got, _ := m.GetVehicle(ctx, v.ID)
	assert.Equal(t, model.VehicleAvailable, got.Status)
}

func TestApplyUnconditionalWrite(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d, err := m.CreateDriver(ctx, model.DriverIn{DutyStatus: model.DutyOnDuty})
	require.NoError(t, err)

	require.NoError(t, m.Apply(ctx, Batch{
		Drivers: []StatusWrite{{ID: d.ID, To: model.DutyAvailable}},
	}))
	got, _ := m.GetDriver(ctx, d.ID)
	assert.Equal(t, model.DutyAvailable, got.DutyStatus)
}

func TestApplyMultiFromGuard(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	d, err := m.CreateDriver(ctx, model.DriverIn{DutyStatus: model.DutyOnDuty})
	require.NoError(t, err)

	require.NoError(t, m.Apply(ctx, Batch{
		Drivers: []StatusWrite{{ID: d.ID, From: []string{model.DutyAvailable, model.DutyOnDuty}, To: model.DutyOnDuty}},
	}))

	require.NoError(t, m.Apply(ctx, Batch{Drivers: []StatusWrite{{ID: d.ID, To: model.DutySuspended}}}))
	err = m.Apply(ctx, Batch{
		Drivers: []StatusWrite{{ID: d.ID, From: []string{model.DutyAvailable, model.DutyOnDuty}, To: model.DutyOnDuty}},
	})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "driver", ce.Entity)
	assert.Equal(t, model.DutySuspended, ce.Have)
}

func TestListVehiclesFilterAndPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := m.CreateVehicle(ctx, model.VehicleIn{MaxLoad: 100})
		require.NoError(t, err)
	}
	v, err := m.CreateVehicle(ctx, model.VehicleIn{MaxLoad: 100, Status: model.VehicleOffline})
	require.NoError(t, err)

	offline, _, err := m.ListVehicles(ctx, model.VehicleOffline, "", 10)
	require.NoError(t, err)
	require.Len(t, offline, 1)
	assert.Equal(t, v.ID, offline[0].ID)

	page1, next, err := m.ListVehicles(ctx, "", "", 4)
	require.NoError(t, err)
	assert.Len(t, page1, 4)
	require.NotEmpty(t, next)

	page2, next2, err := m.ListVehicles(ctx, "", next, 4)
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Empty(t, next2)

	seen := map[string]bool{}
	for _, x := range append(page1, page2...) {
		assert.False(t, seen[x.ID], "duplicate across pages: %s", x.ID)
		seen[x.ID] = true
	}
}

func TestSubscriptionsMatchEvents(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, err := m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://a.example", Events: []string{"trip.started"}})
	require.NoError(t, err)
	_, err = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://b.example", Events: []string{"trip.started", "maintenance.opened"}})
	require.NoError(t, err)

	subs, err := m.GetSubscriptionsForEvent(ctx, "trip.started")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = m.GetSubscriptionsForEvent(ctx, "maintenance.opened")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	subs, err = m.GetSubscriptionsForEvent(ctx, "trip.cancelled")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestWebhookDeliveryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	id, err := m.EnqueueWebhook(ctx, "sub1", "trip.started", "https://a.example", "secret", []byte(`{}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	due, err := m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "trip.started", due[0].EventType)

	require.NoError(t, m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 12))
	due, err = m.FetchDueWebhookDeliveries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "delivered items are no longer due")
}
