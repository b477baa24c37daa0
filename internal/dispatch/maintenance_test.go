package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetcmd/internal/model"
)

func TestOpenMaintenanceSendsVehicleToShop(t *testing.T) {
	s, st := newService(t)
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})

	rec, err := s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: v.ID, Description: "oil change"})
	require.NoError(t, err)
	assert.Equal(t, model.MaintenancePending, rec.Status)
	assert.Equal(t, "oil change", rec.Description)

	gotV, _ := st.GetVehicle(context.Background(), v.ID)
	assert.Equal(t, model.VehicleInShop, gotV.Status)
}

func TestOpenMaintenanceUnknownVehicle(t *testing.T) {
	s, _ := newService(t)
	_, err := s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: "ghost"})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "vehicle", nf.Entity)
}

func TestOpenMaintenanceRejectedWhileOnTrip(t *testing.T) {
	s, st := newService(t)
	d := seedDriver(t, st, model.DriverIn{LicenseStatus: model.LicenseValid})
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})
	trip := seedTrip(t, s, d.ID, v.ID, 100)
	_, err := s.StartTrip(context.Background(), trip.ID)
	require.NoError(t, err)

	_, err = s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: v.ID})
	var is *InvalidStateError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, model.VehicleOnTrip, is.State)
}

func TestOpenMaintenanceAllowedFromShopAndOffline(t *testing.T) {
	s, st := newService(t)
	for _, status := range []string{model.VehicleInShop, model.VehicleOffline} {
		v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500, Status: status})
		rec, err := s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: v.ID})
		require.NoError(t, err, "status %s", status)
		assert.Equal(t, model.MaintenancePending, rec.Status)
	}
}

func TestCloseMaintenanceReleasesVehicle(t *testing.T) {
	s, st := newService(t)
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})
	rec, err := s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: v.ID})
	require.NoError(t, err)

	closed, err := s.CloseMaintenance(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MaintenanceCompleted, closed.Status)

	gotV, _ := st.GetVehicle(context.Background(), v.ID)
	assert.Equal(t, model.VehicleAvailable, gotV.Status)
}

func TestCloseMaintenanceTwiceRejected(t *testing.T) {
	s, st := newService(t)
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})
	rec, err := s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: v.ID})
	require.NoError(t, err)
	_, err = s.CloseMaintenance(context.Background(), rec.ID)
	require.NoError(t, err)

	_, err = s.CloseMaintenance(context.Background(), rec.ID)
	var it *InvalidTransitionError
	require.ErrorAs(t, err, &it)
	assert.Equal(t, model.MaintenanceCompleted, it.From)
}

func TestConcurrentCloseExactlyOneSucceeds(t *testing.T) {
	s, st := newService(t)
	v := seedVehicle(t, st, model.VehicleIn{MaxLoad: 500})
	rec, err := s.OpenMaintenance(context.Background(), model.MaintenanceRequest{VehicleID: v.ID})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CloseMaintenance(context.Background(), rec.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil { wins++ }
	}
	assert.Equal(t, 1, wins)
}
